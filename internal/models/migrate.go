package models

// All lists every persisted model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&ChatSession{},
		&ChatMessage{},
	}
}
