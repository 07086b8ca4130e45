package passes

import "ilforge/internal/passmgr"

// RegisterAll registers every pass this package ships with m. Embedders
// that want a smaller surface can call Register individually instead.
func RegisterAll(m *passmgr.Manager) error {
	for _, p := range []passmgr.Pass{
		Liveness{},
		ConstFold{},
		DCE{},
		CopyProp{},
	} {
		if err := m.Register(p); err != nil {
			return err
		}
	}
	return nil
}
