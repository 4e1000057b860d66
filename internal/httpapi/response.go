package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stockledger/inventory/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes err in the error envelope. Store failures never
// leak their message.
func RespondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	msg := "internal server error"
	code := "internal"
	if kind != apperr.KindStore {
		msg = err.Error()
		code = apperr.CodeOf(err)
	} else {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(kind.Status(), ErrorEnvelope{
		Error: APIError{Message: msg, Code: code},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
