package server

import (
	"sync"

	"association-party/internal/game"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("nickname", func(fl validator.FieldLevel) bool {
			_, err := game.ValidateNickname(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return validRoomCode(fl.Field().String())
		})
	})
}

func validRoomCode(code string) bool {
	if len(code) != game.RoomCodeLength {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
