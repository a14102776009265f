package config

// FileBridge reloads a TOML file into a Store. A Watcher calls Reload on
// every change; callers can also call it directly.
type FileBridge[T any] struct {
	store    *Store[T]
	path     string
	defaults *T
}

// NewFileBridge creates a bridge between the file at path and store.
func NewFileBridge[T any](store *Store[T], path string, defaults *T) *FileBridge[T] {
	return &FileBridge[T]{
		store:    store,
		path:     path,
		defaults: defaults,
	}
}

// Path returns the file the bridge reads.
func (b *FileBridge[T]) Path() string { return b.path }

// Reload decodes the file and swaps it into the store. On error the store
// keeps its current value.
func (b *FileBridge[T]) Reload() error {
	cfg, err := LoadTOML[T](b.path, b.defaults)
	if err != nil {
		return err
	}
	b.store.Swap(cfg)
	return nil
}
