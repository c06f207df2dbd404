package core

// CharacterDefinition describes the persona the chatbot plays.
// It is created once when the chatbot is constructed and never mutated.
type CharacterDefinition struct {
	Name            string `json:"name" yaml:"name"`
	LongDescription string `json:"long_description" yaml:"long_description"`
	Greeting        string `json:"greeting" yaml:"greeting"`
}
