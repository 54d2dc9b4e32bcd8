package artifact

import "strings"

// Compiler flags emitted by the resolver.
const (
	FlagFuseBindingDisabled   = "-iree-stream-fuse-binding=false"
	FlagEnablePadding         = "--iree-flow-enable-padding-linalg-ops"
	FlagPaddingSize16         = "--iree-flow-linalg-ops-padding-size=16"
	FlagPaddingSize32         = "--iree-flow-linalg-ops-padding-size=32"
	FlagConvImg2Col           = "--iree-flow-enable-conv-img2col-transform"
	FlagConvNCHWToNHWC        = "--iree-flow-enable-conv-nchw-to-nhwc-transform"
	FlagConvWinogradTransform = "--iree-flow-enable-conv-winograd-transform"
)

// FlagSet is an ordered list of compiler flags. When the compiler sees the
// same flag key twice the later value wins; FlagSet does not enforce that.
type FlagSet []string

// Key returns the part of a flag before '=', without leading dashes.
func FlagKey(flag string) string {
	k, _, _ := strings.Cut(strings.TrimLeft(flag, "-"), "=")
	return k
}

func (f FlagSet) Contains(flag string) bool {
	for _, x := range f {
		if x == flag {
			return true
		}
	}
	return false
}

// Count returns how many entries equal flag exactly.
func (f FlagSet) Count(flag string) int {
	n := 0
	for _, x := range f {
		if x == flag {
			n++
		}
	}
	return n
}

// HasKey reports whether any flag sets key, whatever its value.
func (f FlagSet) HasKey(key string) bool {
	for _, x := range f {
		if FlagKey(x) == key {
			return true
		}
	}
	return false
}

// Value returns the effective value of key: the last occurrence wins.
func (f FlagSet) Value(key string) (string, bool) {
	val, found := "", false
	for _, x := range f {
		if FlagKey(x) != key {
			continue
		}
		_, v, _ := strings.Cut(x, "=")
		val, found = v, true
	}
	return val, found
}

func (f FlagSet) String() string {
	return strings.Join(f, " ")
}

func (f *FlagSet) add(flags ...string) {
	*f = append(*f, flags...)
}

func (f *FlagSet) addOnce(flag string) {
	if !f.Contains(flag) {
		*f = append(*f, flag)
	}
}
