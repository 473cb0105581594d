package domain

// LookupKind discrimina el identificador con el que se busca un usuario.
type LookupKind int

const (
	LookupByEmail LookupKind = iota
	LookupByPhone
	LookupByProvider
)

// LookupKey es una clave de búsqueda tipada: exactamente un identificador,
// nunca una condición OR sobre varios campos.
type LookupKey struct {
	Kind       LookupKind
	Email      string
	Phone      string
	ProviderID string
}

func ByEmail(email string) LookupKey {
	return LookupKey{Kind: LookupByEmail, Email: email}
}

func ByPhone(phone string) LookupKey {
	return LookupKey{Kind: LookupByPhone, Phone: phone}
}

func ByProvider(providerID string) LookupKey {
	return LookupKey{Kind: LookupByProvider, ProviderID: providerID}
}
