package game

import (
	"reflect"
	"strings"
	"testing"
)

func TestNormalizeItems(t *testing.T) {
	got := NormalizeItems([]string{"  Pizza ", "pizza", "", "Sushi\t Roll", "SUSHI ROLL", "Ramen"})
	want := []string{"Pizza", "Sushi Roll", "Ramen"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	long := strings.Repeat("x", MaxItemLength+10)
	got = NormalizeItems([]string{long})
	if len(got) != 1 || len([]rune(got[0])) != MaxItemLength {
		t.Fatalf("expected item capped at %d runes, got %q", MaxItemLength, got)
	}
}

func TestNormalizeAssociation(t *testing.T) {
	value, err := NormalizeAssociation("  hot   and cheesy ")
	if err != nil || value != "hot and cheesy" {
		t.Fatalf("unexpected value %q err %v", value, err)
	}
	value, _ = NormalizeAssociation(strings.Repeat("é", MaxAssociationLen+5))
	if len([]rune(value)) != MaxAssociationLen {
		t.Fatalf("expected %d runes, got %d", MaxAssociationLen, len([]rune(value)))
	}
	if _, err := NormalizeAssociation(" \n "); err == nil {
		t.Fatalf("expected blank association to fail")
	} else if _, ok := IsValidation(err); !ok {
		t.Fatalf("expected validation error, got %T", err)
	}
}

func TestValidateNickname(t *testing.T) {
	if _, err := ValidateNickname(strings.Repeat("a", MaxNicknameLength+1)); err == nil {
		t.Fatalf("expected long nickname to fail")
	}
	name, err := ValidateNickname("  Ada  ")
	if err != nil || name != "Ada" {
		t.Fatalf("unexpected nickname %q err %v", name, err)
	}
	if !SameNickname("Zoë", " ZOË ") {
		t.Fatalf("expected case folding to match")
	}
}

func TestSplitQueues(t *testing.T) {
	items := []uint{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	standard, lightning := splitQueues(items, LightningThreshold)
	if len(standard) != 12 || len(lightning) != 0 || lightning == nil {
		t.Fatalf("small room: standard=%v lightning=%v", standard, lightning)
	}

	standard, lightning = splitQueues(items, 20)
	if len(standard) != StandardRoundCap || len(lightning) != 2 {
		t.Fatalf("large room: standard=%v lightning=%v", standard, lightning)
	}

	standard, lightning = splitQueues(items[:6], 20)
	if len(standard) != 6 || len(lightning) != 0 {
		t.Fatalf("large room, few items: standard=%v lightning=%v", standard, lightning)
	}
}

func TestNewRoomCode(t *testing.T) {
	r := NewSeededRand(1, 1)
	for i := 0; i < 100; i++ {
		code := NewRoomCode(r)
		if len(code) != RoomCodeLength {
			t.Fatalf("unexpected code length %q", code)
		}
		for _, c := range code {
			if !strings.ContainsRune(roomCodeAlphabet, c) {
				t.Fatalf("unexpected character %q in %q", c, code)
			}
		}
	}
}
