package catalogdata

import _ "embed"

// Models is the built-in model catalog: artifact keys mapped to the names
// of precompiled models, plus the storage bucket of each variant.
//
//go:embed models.yaml
var Models []byte
