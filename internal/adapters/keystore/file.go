// Package keystore guarda la credencial del proveedor de datos en un
// fichero plano con permisos restrictivos. El equivalente en disco del
// localStorage de un dashboard.
package keystore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File implementa ports.CredentialStore sobre un fichero.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile crea un store sobre la ruta dada. El fichero no tiene por qué
// existir todavía.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load devuelve la credencial guardada, o "" si el fichero no existe.
func (f *File) Load() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keystore.Load: read %q: %w", f.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save reemplaza la credencial guardada. Una credencial vacía borra el
// fichero: volver al feed simulado.
func (f *File) Save(credential string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	credential = strings.TrimSpace(credential)
	if credential == "" {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("keystore.Save: remove %q: %w", f.path, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("keystore.Save: mkdir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(credential+"\n"), 0o600); err != nil {
		return fmt.Errorf("keystore.Save: write %q: %w", f.path, err)
	}
	return nil
}
