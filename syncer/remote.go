package syncer

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"go.zomroad.dev/save/document"
	"go.zomroad.dev/save/transport"
)

// RemoteStore is the remote authoritative copy of the save document.
type RemoteStore interface {
	// Fetch returns the remote document, or nil if the player has no
	// remote save yet.
	Fetch(ctx context.Context) (*document.Document, error)
	// Put replaces the remote document. While offline the write may be
	// accepted into the replay queue rather than applied immediately.
	Put(ctx context.Context, doc document.Document) error
}

// SavePath is the resource path of the player's save document.
const SavePath = "/v1/save"

// HTTPRemote is a RemoteStore over the resilient transport.
type HTTPRemote struct {
	Transport *transport.Transport
}

// Fetch implements RemoteStore.
func (r *HTTPRemote) Fetch(ctx context.Context) (*document.Document, error) {
	var resp, err = r.Transport.Request(ctx, transport.Op{
		Verb: http.MethodGet,
		Path: SavePath,
	}).Wait()

	if errors.Cause(err) == transport.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var doc document.Document
	if err = json.Unmarshal(resp, &doc); err != nil {
		return nil, errors.WithMessage(err, "decoding remote document")
	}
	return &doc, nil
}

// Put implements RemoteStore.
func (r *HTTPRemote) Put(ctx context.Context, doc document.Document) error {
	var p = r.Transport.Request(ctx, transport.Op{
		Verb:     http.MethodPut,
		Path:     SavePath,
		Body:     doc,
		Mutating: true,
	})

	select {
	case <-p.Done():
		var _, err = p.Wait()
		return err
	default:
		// Offline: the write was queued for replay, which is success from
		// the reconciler's point of view.
		return nil
	}
}
