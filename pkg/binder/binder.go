package binder

import (
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/foliobooks/folio/pkg/errcodes"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/segmentio/encoding/json"
)

// formFilesField is the struct field uploaded files are collected into. It
// must be a map[string]*multipart.FileHeader.
const formFilesField = "FormFiles"

var unknownFieldsRE = regexp.MustCompile(`^json: unknown field "(.*)"$`)

var fileHeaderType = reflect.TypeOf((*multipart.FileHeader)(nil))

// Binder implements echo.Binder. It decodes the request into a struct, runs
// mold over it to clean it up, fills defaults, and validates the result.
type Binder struct {
	queryDecoder *schema.Decoder
	formDecoder  *schema.Decoder
	conform      *mold.Transformer
	validate     *validator.Validate
}

func New() (*Binder, error) {
	queryDecoder := schema.NewDecoder()
	queryDecoder.SetAliasTag("query")
	formDecoder := schema.NewDecoder()
	formDecoder.SetAliasTag("form")

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("url", urlValidator); err != nil {
		return nil, errors.WithStack(err)
	}

	return &Binder{
		queryDecoder: queryDecoder,
		formDecoder:  formDecoder,
		conform:      modifiers.New(),
		validate:     validate,
	}, nil
}

// Bind binds, modifies, and validates payloads against the given struct.
// Requests without a body bind their query string when they are GET or
// DELETE and are rejected otherwise, unless the route set
// "disallow_empty_body" to false.
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()

	var err error
	switch ctype := req.Header.Get(echo.HeaderContentType); {
	case req.ContentLength == 0 && (req.Method == http.MethodGet || req.Method == http.MethodDelete):
		err = b.decodeValues(i, c.QueryParams(), b.queryDecoder)
	case req.ContentLength == 0:
		if disallow, ok := c.Get("disallow_empty_body").(bool); !ok || disallow {
			return errcodes.EmptyRequestBody()
		}
	case strings.HasPrefix(ctype, echo.MIMEApplicationJSON):
		err = b.bindJSON(i, c)
	case strings.HasPrefix(ctype, echo.MIMEMultipartForm):
		err = b.bindMultipart(i, c)
	case strings.HasPrefix(ctype, echo.MIMEApplicationForm):
		err = b.bindForm(i, c)
	default:
		return errcodes.UnsupportedMediaType()
	}
	if err != nil {
		return err
	}

	if err := b.conform.Struct(req.Context(), i); err != nil {
		return errors.WithStack(err)
	}
	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}
	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return errcodes.ValidationError(formatValidationError(errs[0]))
		}
		return errors.WithStack(err)
	}
	return nil
}

func (b *Binder) bindJSON(i interface{}, c echo.Context) error {
	req := c.Request()
	defer req.Body.Close()

	dec := json.NewDecoder(req.Body)
	if disallow, ok := c.Get("disallow_unknown_fields").(bool); !ok || disallow {
		dec.DisallowUnknownFields()
	}

	err := dec.Decode(i)
	if err == nil {
		return nil
	}
	if tooLarge(err) {
		return errcodes.PayloadTooLarge()
	}
	if matches := unknownFieldsRE.FindStringSubmatch(err.Error()); len(matches) > 1 {
		return errcodes.UnknownParameter(matches[1])
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return errcodes.ValidationTypeError(formatUnmarshalTypeError(typeErr))
	}

	logger.FromEchoContext(c).Err(err).Error("unknown json decode error")
	return errcodes.MalformedPayload()
}

func (b *Binder) bindForm(i interface{}, c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		if tooLarge(err) {
			return errcodes.PayloadTooLarge()
		}
		return errcodes.MalformedPayload()
	}
	return b.decodeValues(i, params, b.formDecoder)
}

// bindMultipart decodes the text fields like a form and puts the first file
// of every file field into the FormFiles map, keyed by field name.
func (b *Binder) bindMultipart(i interface{}, c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		if tooLarge(err) {
			return errcodes.PayloadTooLarge()
		}
		return errcodes.MalformedPayload()
	}
	if err := b.decodeValues(i, form.Value, b.formDecoder); err != nil {
		return err
	}

	field := reflect.ValueOf(i).Elem().FieldByName(formFilesField)
	if !field.IsValid() || !field.CanSet() || field.Kind() != reflect.Map || field.Type().Elem() != fileHeaderType {
		return nil
	}
	for key, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		if field.IsNil() {
			field.Set(reflect.MakeMap(field.Type()))
		}
		field.SetMapIndex(reflect.ValueOf(key), reflect.ValueOf(headers[0]))
	}
	return nil
}

func (b *Binder) decodeValues(i interface{}, params url.Values, decoder *schema.Decoder) error {
	err := decoder.Decode(i, params)
	if err == nil {
		return nil
	}

	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return errors.WithStack(err)
	}
	// Report a single error; which one is arbitrary since MultiError is a map.
	for _, err := range multi {
		var conversion schema.ConversionError
		if errors.As(err, &conversion) {
			return errcodes.ValidationTypeError(formatSchemaConversionError(conversion))
		}
		var unknown schema.UnknownKeyError
		if errors.As(err, &unknown) {
			return errcodes.UnknownParameter(unknown.Key)
		}
		return errors.WithStack(err)
	}
	return nil
}

func tooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large")
}
