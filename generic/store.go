/*
store.go - Collaborator interfaces for external I/O

PURPOSE:
  Defines the narrow interfaces between the leave core and the outside
  world that are not specific to the leave domain. The core never performs
  I/O itself; services call these collaborators before or after the pure
  computation, never while holding a lock.

KEY INTERFACES:
  Uploader: Stores a supporting document and returns an opaque reference

IMPLEMENTATIONS:
  - storage/local.go: Local filesystem, served under a public base URL

EXAMPLE:
  ref, err := uploader.Upload(ctx, data, "medical-note.pdf")
  if err != nil {
      return &timeoff.IOError{Op: "upload", Err: err}
  }
  // ref is attached to the leave record as-is

SEE ALSO:
  - timeoff/service.go: Persistence Repository and the load-modify-save cycle
*/
package generic

import "context"

// =============================================================================
// UPLOADER - Opaque document storage
// =============================================================================

// Uploader persists bytes under a caller-supplied name and returns a reference
// (URL or key). The reference format is owned by the implementation.
type Uploader interface {
	Upload(ctx context.Context, data []byte, name string) (string, error)
}

// UploaderFunc adapts a function to the Uploader interface.
type UploaderFunc func(ctx context.Context, data []byte, name string) (string, error)

func (f UploaderFunc) Upload(ctx context.Context, data []byte, name string) (string, error) {
	return f(ctx, data, name)
}
