package ids

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet omits characters that are easily confused when read aloud or handwritten.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// HealthMR returns a patient identifier such as HMR-7KQ2M9XD.
func HealthMR() (string, error) { return prefixed("HMR", 8) }

// Temp returns the temporary identifier issued to patients registered without a NIN.
func Temp() (string, error) { return prefixed("TMP", 8) }

// Staff returns a medical staff identifier such as STF-4HX9QA.
func Staff() (string, error) { return prefixed("STF", 6) }

func prefixed(prefix string, size int) (string, error) {
	id, err := gonanoid.Generate(Alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate %s id: %w", prefix, err)
	}
	return prefix + "-" + id, nil
}
