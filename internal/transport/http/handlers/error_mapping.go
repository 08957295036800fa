package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// errorMapping translates use-case errors into responses. Errors that match no
// case are attached to the gin context for the access log and answered with the
// fallback, so internal detail never reaches the client.
type errorMapping struct {
	cases           []ErrorCase
	fallbackStatus  int
	fallbackMessage string
}

func (m errorMapping) respond(c *gin.Context, err error) {
	for _, cs := range m.cases {
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}
	_ = c.Error(err)
	c.JSON(m.fallbackStatus, NewErrorResponse(c, m.fallbackMessage))
}
