// Package export holds the input guards for slide image and archive export,
// plus the file naming used when a deck is written out.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
)

// SlideOptions controls how each slide is rasterized.
type SlideOptions struct {
	Width   int     `json:"width" validate:"min=100,max=4000"`
	Height  int     `json:"height" validate:"min=100,max=4000"`
	Quality float64 `json:"quality" validate:"min=0.1,max=1"`
	Format  string  `json:"format" validate:"oneof=png jpg"`
}

// DefaultSlideOptions returns square 1080px PNG slides.
func DefaultSlideOptions() SlideOptions {
	return SlideOptions{Width: 1080, Height: 1080, Quality: 0.95, Format: "png"}
}

// ZipOptions controls archive packaging.
type ZipOptions struct {
	Filename         string `json:"filename" validate:"zipname"`
	CompressionLevel int    `json:"compressionLevel" validate:"min=0,max=9"`
}

// DefaultZipFilename is used when no usable name can be derived.
const DefaultZipFilename = "carousel-slides"

// DefaultZipOptions returns the default archive settings.
func DefaultZipOptions() ZipOptions {
	return ZipOptions{Filename: DefaultZipFilename, CompressionLevel: 6}
}

// Result lists human-readable validation failures.
type Result struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

var zipnamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validate is safe for concurrent use once custom validations are registered.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("zipname", validateZipname); err != nil {
		panic(fmt.Sprintf("export: register zipname validation: %v", err))
	}
	return v
}

func validateZipname(fl validator.FieldLevel) bool {
	return zipnamePattern.MatchString(fl.Field().String())
}

// ValidateSlideOptions checks dimensions, quality and format.
func ValidateSlideOptions(o SlideOptions) Result {
	return check(o)
}

// ValidateZipOptions checks the archive filename and compression level.
func ValidateZipOptions(o ZipOptions) Result {
	return check(o)
}

func check(s any) Result {
	res := Result{IsValid: true, Errors: []string{}}
	err := validate.Struct(s)
	if err == nil {
		return res
	}
	res.IsValid = false

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	for _, fe := range verrs {
		res.Errors = append(res.Errors, message(fe))
	}
	return res
}

// message renders a field error the way the export UI reports it.
func message(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Width", "Height":
		return fmt.Sprintf("%s must be between 100 and 4000 pixels", fe.StructField())
	case "Quality":
		return "Quality must be between 0.1 and 1"
	case "Format":
		return "Format must be either png or jpg"
	case "Filename":
		return "Filename can only contain letters, numbers, hyphens, and underscores"
	case "CompressionLevel":
		return "Compression level must be between 0 and 9"
	}
	return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
}

// Filename derives an archive name from a deck title. The result always
// passes ValidateZipOptions.
func Filename(title string) string {
	name := slug.Make(title)
	name = strings.Trim(name, "-_")
	if len(name) > 60 {
		name = strings.TrimRight(name[:60], "-_")
	}
	if !zipnamePattern.MatchString(name) {
		return DefaultZipFilename
	}
	return name
}

// SlideFilename names the nth (1-based) slide image of a deck.
func SlideFilename(n int, format string) string {
	return fmt.Sprintf("slide-%02d.%s", n, format)
}
