// Package binder replaces echo's default binder with one that decodes a
// request, runs mold modifiers and struct defaults over it, and validates
// the result, turning every failure into an error a client can act on.
package binder

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/codexlibris/codex/pkg/errcodes"
	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
)

var unknownFieldRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

// Binder decodes JSON bodies, form posts, and query strings into parameter
// structs. Validation messages are keyed by json field names so they read
// the way the client spelled the field.
type Binder struct {
	query    *schema.Decoder
	form     *schema.Decoder
	conform  *mold.Transformer
	validate *validator.Validate
}

// New builds a Binder with the catalog's custom validators registered.
func New() (*Binder, error) {
	query := schema.NewDecoder()
	query.SetAliasTag("query")
	form := schema.NewDecoder()
	form.SetAliasTag("form")

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("date", dateValidator); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := validate.RegisterValidation("url", urlValidator); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Binder{
		query:    query,
		form:     form,
		conform:  modifiers.New(),
		validate: validate,
	}, nil
}

// Bind implements echo.Binder. Bodied requests must be JSON or a form;
// GET and DELETE bind their query strings instead.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	switch {
	case req.ContentLength > 0:
		ctype := req.Header.Get(echo.HeaderContentType)
		switch {
		case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
			if err := b.bindJSON(i, c); err != nil {
				return err
			}
		case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
			params, err := c.FormParams()
			if err != nil {
				return errcodes.MalformedPayload()
			}
			if err := b.decodeValues(i, params, b.form); err != nil {
				return err
			}
		default:
			return errcodes.UnsupportedMediaType()
		}
	case req.Method == http.MethodGet || req.Method == http.MethodDelete:
		if err := b.decodeValues(i, c.QueryParams(), b.query); err != nil {
			return err
		}
	default:
		return errcodes.EmptyRequestBody()
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		errs := err.(validator.ValidationErrors)
		return errcodes.ValidationError(formatValidationError(errs[0]))
	}
	return nil
}

// bindJSON decodes a JSON body strictly. Unknown fields are rejected so a
// misspelled parameter fails loudly instead of silently doing nothing.
func (b *Binder) bindJSON(i interface{}, c echo.Context) error {
	req := c.Request()
	defer req.Body.Close()

	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(i)
	if err == nil {
		return nil
	}

	if matches := unknownFieldRE.FindStringSubmatch(err.Error()); len(matches) > 1 {
		return errcodes.UnknownParameter(matches[1])
	}
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		return errcodes.ValidationTypeError(formatUnmarshalTypeError(typeErr))
	}

	logger.FromEchoContext(c).Err(err).Error("unhandled json decode error")
	return errcodes.MalformedPayload()
}

func (b *Binder) decodeValues(i interface{}, params url.Values, decoder *schema.Decoder) error {
	err := decoder.Decode(i, params)
	if err == nil {
		return nil
	}

	if errs, ok := err.(schema.MultiError); ok {
		// MultiError is a map, so this reports an arbitrary one of them.
		for _, err = range errs {
			break
		}
		if convErr, ok := err.(schema.ConversionError); ok {
			return errcodes.ValidationTypeError(formatSchemaConversionError(convErr))
		}
		if unknownErr, ok := err.(schema.UnknownKeyError); ok {
			return errcodes.UnknownParameter(unknownErr.Key)
		}
	}
	return errors.WithStack(err)
}
