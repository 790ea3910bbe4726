package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages maps struct field and failed tag to the reason shown to the
// client.
type bindMessages map[string]map[string]string

var nicknameMessages = bindMessages{
	"Nickname": {
		"required": "nickname is required",
		"nickname": "nickname must be 1 to 20 characters",
	},
}

var reconnectMessages = bindMessages{
	"UserID": {"required": "userId is required"},
}

func bindJSON(c *gin.Context, req any, messages bindMessages) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages)})
		return false
	}
	return true
}

// bindURI treats a malformed path parameter as an unknown resource.
func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if msg, ok := messages[verr.Field()][verr.Tag()]; ok {
				return msg
			}
		}
	}
	return "invalid request"
}
