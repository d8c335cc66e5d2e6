package ports

// CredentialStore guarda la credencial opaca del proveedor de datos.
// Se carga al arrancar y se actualiza desde la acción de settings; el
// pipeline nunca la lee directamente — PriceSource la recibe como
// parámetro opcional en cada llamada.
type CredentialStore interface {
	// Load devuelve la credencial guardada, o "" si no hay ninguna.
	Load() (string, error)

	// Save reemplaza la credencial guardada.
	Save(credential string) error
}
