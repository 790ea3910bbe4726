package web

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Room renders the join page for a room code. Joining and play happen over
// the JSON API and the room websocket.
func Room(page RoomPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		code := escape(page.Code)
		_, _ = io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Room `+code+` · Association Party</title>
  </head>
  <body data-room-id="`+utoa(page.RoomID)+`" data-room-code="`+code+`">
    <main class="shell">
      <header class="hero">
        <span class="tag">Room `+code+`</span>
        <p>`+itoa(page.PlayerCount)+` of `+itoa(page.MaxPlayers)+` players · `+escape(page.Status)+`</p>
      </header>
`)
		if page.QRPath != "" {
			_, _ = io.WriteString(w, `      <img class="qr" src="`+escape(page.QRPath)+`" alt="Join QR code" width="320" height="320"/>
`)
		}
		if page.Joinable() {
			_, _ = io.WriteString(w, `      <form id="joinForm">
        <input name="nickname" placeholder="Your name" maxlength="20" required/>
        <button type="submit">Join</button>
      </form>
`)
		} else {
			_, _ = io.WriteString(w, `      <p class="notice">This room is not accepting new players.</p>
`)
		}
		_, err := io.WriteString(w, `      <div id="status" class="result"></div>
      <pre id="feed" class="feed"></pre>
    </main>
    <script>
      const code = document.body.dataset.roomCode;
      const roomId = document.body.dataset.roomId;
      const status = document.getElementById("status");
      const feed = document.getElementById("feed");
      const joinForm = document.getElementById("joinForm");

      function connect(userId) {
        const scheme = location.protocol === "https:" ? "wss" : "ws";
        const ws = new WebSocket(scheme + "://" + location.host + "/ws/rooms/" + roomId + "?userId=" + userId);
        ws.onmessage = (event) => {
          feed.textContent = event.data + "\n" + feed.textContent;
        };
        ws.onclose = () => { status.textContent = "Disconnected."; };
        window.room = ws;
      }

      const saved = sessionStorage.getItem("room:" + code);
      if (saved) {
        connect(JSON.parse(saved).userId);
      }

      if (joinForm) {
        joinForm.addEventListener("submit", async (event) => {
          event.preventDefault();
          const nickname = joinForm.elements.nickname.value.trim();
          const res = await fetch("/api/rooms/" + code + "/join", {
            method: "POST",
            headers: { "Content-Type": "application/json" },
            body: JSON.stringify({ nickname })
          });
          const data = await res.json();
          if (!res.ok) {
            status.textContent = data.error || "Could not join.";
            return;
          }
          sessionStorage.setItem("room:" + code, JSON.stringify(data));
          joinForm.remove();
          connect(data.userId);
        });
      }
    </script>
  </body>
</html>
`)
		return err
	})
}

// NotFound renders the page shown for an unknown room code.
func NotFound(code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
  <head><meta charset="utf-8"/><title>Room not found</title></head>
  <body>
    <main class="shell">
      <h1>Room `+escape(code)+` was not found</h1>
      <p><a href="/">Back to start</a></p>
    </main>
  </body>
</html>
`)
		return err
	})
}
