package middleware

import (
	"encoding/json"
	"errors"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"natours-api/internal/config"
	"natours-api/internal/core/domain"
	"natours-api/internal/pkg/response"
	"natours-api/internal/pkg/validation"
)

const genericMessage = "Please try again later."

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Natours | {{.Title}}</title>
</head>
<body>
    <main class="error">
        <h2 class="error__title">{{.Title}}</h2>
        <div class="error__msg">{{.Message}}</div>
    </main>
</body>
</html>`))

type pageData struct {
	Title   string
	Message string
}

// ErrorHandler is the single error boundary of the app. API requests get a
// JSON body, every other path gets an HTML page. Outside dev mode the
// details of non-operational errors are logged and never sent.
func ErrorHandler(cfg *config.Config, log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		appErr := Normalize(err)

		if !appErr.Operational {
			log.Error("unexpected error",
				zap.Error(err),
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("request_id", c.Locals("requestid")),
				zap.ByteString("stack", appErr.Stack),
			)
		}

		c.Status(appErr.Status)
		if strings.HasPrefix(c.Path(), "/api") {
			return c.JSON(errorBody(cfg, appErr))
		}
		return renderErrorPage(c, cfg, appErr)
	}
}

// NotFound answers every route no handler matched
func NotFound(c *fiber.Ctx) error {
	return domain.NewNotFound("Can't find " + c.OriginalURL() + " on this server!")
}

// Normalize converts any error reaching the boundary into an AppError
func Normalize(err error) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return domain.NewStatus(fiberErr.Code, fiberErr.Message)
	}

	if verr, ok := validation.FromError(err); ok {
		return verr
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNoDocument
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrDuplicateValue
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return domain.ErrInvalidBody
	}

	return domain.NewInternal("unexpected error", err)
}

func errorBody(cfg *config.Config, appErr *domain.AppError) fiber.Map {
	status := response.StatusFor(appErr.Status)

	if cfg.IsDev() {
		body := fiber.Map{
			"status":  status,
			"message": appErr.Message,
			"error": fiber.Map{
				"kind":        appErr.Kind,
				"statusCode":  appErr.Status,
				"operational": appErr.Operational,
				"detail":      appErr.Error(),
			},
		}
		if len(appErr.Fields) > 0 {
			body["errors"] = appErr.Fields
		}
		if len(appErr.Stack) > 0 {
			body["stack"] = string(appErr.Stack)
		}
		return body
	}

	if !appErr.Operational {
		return fiber.Map{"status": response.StatusError, "message": genericMessage}
	}

	body := fiber.Map{"status": status, "message": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["errors"] = appErr.Fields
	}
	return body
}

func renderErrorPage(c *fiber.Ctx, cfg *config.Config, appErr *domain.AppError) error {
	msg := appErr.Message
	if !appErr.Operational && !cfg.IsDev() {
		msg = genericMessage
	}

	var buf strings.Builder
	if err := errorPage.Execute(&buf, pageData{Title: "Something went wrong!", Message: msg}); err != nil {
		return c.SendString(msg)
	}

	c.Type("html")
	return c.SendString(buf.String())
}
