package response

import "github.com/gofiber/fiber/v2"

const (
	StatusSuccess = "success"
	StatusFail    = "fail"
	StatusError   = "error"
)

// Response represents a standard API response
type Response struct {
	Status  string      `json:"status"`
	Results *int        `json:"results,omitempty"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success sends a 200 response wrapping data
func Success(c *fiber.Ctx, data interface{}) error {
	return c.JSON(Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// Created sends a 201 created response
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Status: StatusSuccess,
		Data:   data,
	})
}

// List sends a 200 response carrying the number of results
func List(c *fiber.Ctx, results int, data interface{}) error {
	return c.JSON(Response{
		Status:  StatusSuccess,
		Results: &results,
		Data:    data,
	})
}

// WithToken sends a response carrying a freshly issued session token
func WithToken(c *fiber.Ctx, statusCode int, token string, data interface{}) error {
	return c.Status(statusCode).JSON(Response{
		Status: StatusSuccess,
		Token:  token,
		Data:   data,
	})
}

// Message sends a 200 response with only a message
func Message(c *fiber.Ctx, message string) error {
	return c.JSON(Response{
		Status:  StatusSuccess,
		Message: message,
	})
}

// NoContent sends an empty 204 response
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// StatusFor returns "fail" for client errors and "error" for everything else
func StatusFor(statusCode int) string {
	if statusCode >= 400 && statusCode < 500 {
		return StatusFail
	}
	return StatusError
}
