package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected input field, named the way the client
// sent it (json or form key).
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

func BindJSON(ctx *gin.Context, out any) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		rejectBind(ctx, err, out, "Invalid request body")
		return false
	}
	return true
}

// BindForm binds urlencoded or multipart fields. File parts are left to the
// caller.
func BindForm(ctx *gin.Context, out any) bool {
	if err := ctx.ShouldBind(out); err != nil {
		rejectBind(ctx, err, out, "Invalid form data")
		return false
	}
	return true
}

func rejectBind(ctx *gin.Context, err error, out any, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
		return
	}

	RespondBadRequest(ctx, msg, bindDetails(err, out))
}

func bindDetails(err error, out any) gin.H {
	names := inputNames(out)

	var verrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &verrs):
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   names.lookup(fe.StructField()),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param()),
			})
		}
		return gin.H{"fields": fields}

	case errors.Is(err, io.EOF):
		return gin.H{"json": "empty_body"}

	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return gin.H{"json": "invalid_json_syntax"}

	case errors.As(err, &typeErr):
		field := names.lookup(typeErr.Field)
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}},
		}
	}

	return gin.H{"reason": err.Error()}
}

// fieldNames maps Go struct field names (and json keys, which is what
// UnmarshalTypeError reports) to the key the client used.
type fieldNames map[string]string

func (n fieldNames) lookup(name string) string {
	if v, ok := n[name]; ok {
		return v
	}
	return name
}

// inputNames only walks the top level; request types here are flat.
func inputNames(v any) fieldNames {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	names := fieldNames{}
	if t == nil || t.Kind() != reflect.Struct {
		return names
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		key := tagName(sf, "json")
		if key == "" {
			key = tagName(sf, "form")
		}
		if key == "" {
			continue
		}
		names[sf.Name] = key
		names[key] = key
	}

	return names
}

func tagName(sf reflect.StructField, tag string) string {
	name, _, _ := strings.Cut(sf.Tag.Get(tag), ",")
	if name == "-" {
		return ""
	}
	return name
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	case "uuid":
		return "must be a valid id"
	}

	if param != "" {
		return "failed " + rule + "=" + param
	}
	return "failed " + rule
}
