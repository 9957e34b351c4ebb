package binder

import (
	"fmt"
	"reflect"
	"strings"
	timepkg "time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

const (
	date     = "date"
	email    = "email"
	gt       = "gt"
	gte      = "gte"
	gtfield  = "gtfield"
	ltfield  = "ltfield"
	mx       = "max"
	mn       = "min"
	ne       = "ne"
	oneof    = "oneof"
	required = "required"
)

var timeType = reflect.TypeOf(timepkg.Time{})

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	// FIXME: this doesn't work well for incorrect map values, e.g. it will say
	// `"metadata" should be a string instead of a object` if you pass in
	// `{"metadata":{"foo":{"bar":"baz"}}}`.
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

// formatValidationError renders the first failed validate tag as a sentence.
// Only the tags the param structs actually use are covered; anything new
// deliberately comes out as a placeholder so it gets noticed and added here.
func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case "date":
		return fmt.Sprintf("%q should be in the format of YYYY-MM-DD", field)
	case "url":
		return fmt.Sprintf("%q is not a valid URL", field)
	case "email":
		return fmt.Sprintf("%q is not a valid email", field)
	case "gt":
		return fmt.Sprintf("%q must be greater than %s", field, orNow(err))
	case "gte":
		return fmt.Sprintf("%q must be greater than or equal to %s", field, orNow(err))
	case "gtfield":
		// FIXME: err.Param() will return the struct field, not the JSON version
		// e.g. EndTime, not end_time
		return fmt.Sprintf("%q must be greater than %s", field, err.Param())
	case "ltfield":
		// FIXME: err.Param() will return the struct field, not the JSON version
		// e.g. EndTime, not end_time
		return fmt.Sprintf("%q must be less than %s", field, err.Param())
	case "max":
		return boundMessage(err, "less than or equal to")
	case "min", "omitnil":
		// omitnil failures surface the min bound that sits next to them.
		return boundMessage(err, "greater than or equal to")
	case "ne":
		return fmt.Sprintf("%q can't be %q", field, err.Param())
	case "oneof":
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case "required":
		return fmt.Sprintf("%q is required", field)
	default:
		// This printout is what you work from when adding a message for a
		// tag that isn't covered yet.
		fmt.Printf("unhandled validate tag: tag=%s actual=%s field=%s struct=%s param=%s kind=%s type=%s\n",
			err.Tag(), err.ActualTag(), field, err.StructField(), err.Param(), err.Kind(), err.Type())

		return "NOT IMPLEMENTED YET"
	}
}

// orNow substitutes "now" for an empty bound on time comparisons.
func orNow(err validator.FieldError) string {
	if err.Param() == "" && err.Type() == timeType {
		return "now"
	}
	return err.Param()
}

// boundMessage renders a min or max failure. Numbers compare by value while
// strings and slices compare by length.
func boundMessage(err validator.FieldError, cmp string) string {
	field := err.Field()
	param := err.Param()

	//exhaustive:ignore
	switch err.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%q must be %s %s", field, cmp, param)
	case reflect.Slice:
		return fmt.Sprintf("%q length must be %s %s %s", field, cmp, param, plural("element", param))
	default:
		return fmt.Sprintf("%q length must be %s %s %s", field, cmp, param, plural("character", param))
	}
}

func plural(noun, count string) string {
	if count == "1" {
		return noun
	}
	return noun + "s"
}
