package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

func Home() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Association Party</title>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <h1>Association Party</h1>
        <p>One word each. Can the room guess what you were describing?</p>
      </header>

      <section class="panel">
        <h2>Host a room</h2>
        <form id="createForm">
          <input name="nickname" placeholder="Host name" maxlength="20" required/>
          <button type="submit">Create room</button>
        </form>
        <div id="createResult" class="result"></div>
      </section>

      <section class="panel">
        <h2>Join a room</h2>
        <form id="joinForm">
          <input name="code" placeholder="Room code" maxlength="4" autocomplete="off" required/>
          <button type="submit">Continue</button>
        </form>
      </section>
    </main>

    <script>
      const createForm = document.getElementById("createForm");
      const createResult = document.getElementById("createResult");
      const joinForm = document.getElementById("joinForm");

      createForm.addEventListener("submit", async (event) => {
        event.preventDefault();
        createResult.textContent = "Creating room...";
        const nickname = createForm.elements.nickname.value.trim();
        const res = await fetch("/api/rooms", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify({ nickname })
        });
        const data = await res.json();
        if (!res.ok) {
          createResult.textContent = data.error || "Failed to create room.";
          return;
        }
        sessionStorage.setItem("room:" + data.code, JSON.stringify(data));
        window.location = "/rooms/" + data.code;
      });

      joinForm.addEventListener("submit", (event) => {
        event.preventDefault();
        const code = joinForm.elements.code.value.trim().toUpperCase();
        window.location = "/rooms/" + encodeURIComponent(code);
      });
    </script>
  </body>
</html>
`)
		return err
	})
}
