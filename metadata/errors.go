package metadata

import (
	"fmt"

	"github.com/davejbax/corepe/errs"
)

func malformedf(format string, args ...any) error {
	return errs.Plain(errs.MalformedMetadata, fmt.Sprintf(format, args...), nil)
}

func malformedAt(offset int64, format string, args ...any) error {
	return errs.At(errs.MalformedMetadata, offset, fmt.Sprintf(format, args...), nil)
}
