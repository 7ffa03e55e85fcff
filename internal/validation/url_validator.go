package validation

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	validate  *validator.Validate
	appIDExpr = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

func init() {
	validate = New()
}

// New returns a validator with the installer's custom rules registered:
// "app_id" for catalog identifiers and "download_url" for asset locations.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("app_id", validateAppID)
	_ = v.RegisterValidation("download_url", validateDownloadURL)
	return v
}

// ValidateDownloadURL checks that an asset URL can be fetched by the transfer engine.
func ValidateDownloadURL(u string) error {
	if err := validate.Var(u, "required,download_url"); err != nil {
		return fmt.Errorf("invalid download URL %q: %w", u, err)
	}
	return nil
}

// ValidateAppID checks a catalog app identifier.
func ValidateAppID(id string) error {
	if err := validate.Var(id, "required,app_id"); err != nil {
		return fmt.Errorf("invalid app id %q: %w", id, err)
	}
	return nil
}

// ValidateStruct validates a struct using its validate tags.
func ValidateStruct(s any) error {
	return validate.Struct(s)
}

func validateAppID(fl validator.FieldLevel) bool {
	return appIDExpr.MatchString(fl.Field().String())
}

func validateDownloadURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
