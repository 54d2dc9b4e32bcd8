package artifact

import "github.com/jguan/sdtank/pkg/errs"

var (
	ErrUnsupportedConfiguration = errs.NewDomain("artifact", errs.CodeUnsupportedConfiguration, "unsupported configuration")
	ErrCatalogInvalid           = errs.NewDomain("artifact", errs.CodeCatalogInvalid, "invalid model catalog")
	ErrTripleSourceNotSet       = errs.NewDomain("artifact", errs.CodeInvalidInput, "target triple source not set")
)

func unsupported(field, value string) *errs.Error {
	return ErrUnsupportedConfiguration.
		WithDetails("field", field).
		WithDetails("value", value)
}
