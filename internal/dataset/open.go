package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"daops/internal/datasource"
	"daops/internal/datasource/httpds"
	"daops/internal/dsref"
)

// Opener reads datasets from local paths or URLs.
type Opener struct {
	fs     afero.Fs
	client *httpds.Client
}

// NewOpener returns an Opener. client may be nil when only local files are
// read.
func NewOpener(fs afero.Fs, client *httpds.Client) *Opener {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Opener{fs: fs, client: client}
}

// Open reads loc. Kerchunk references (.json) are decoded from their inline
// refs; anything else is read as the JSON dataset rendering.
func (o *Opener) Open(ctx context.Context, loc string) (*Dataset, error) {
	b, err := datasource.ReadAll(ctx, o.fs, o.client, loc)
	if err != nil {
		return nil, err
	}
	var ds *Dataset
	if dsref.LooksLikeKerchunk(loc) {
		ds, err = DecodeKerchunk(b)
	} else {
		ds, err = Decode(b)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc, err)
	}
	return ds, nil
}
