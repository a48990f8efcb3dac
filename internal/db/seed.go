package db

import (
	"fmt"

	"eneatest/internal/models"
)

// DefinitionInserter is satisfied by both stores; the demo seed and the
// definition loader only need these operations.
type DefinitionInserter interface {
	DefinitionVersionExists(id string, version int) (bool, error)
	InsertDefinition(def *models.TestDefinition, activate, replace bool) error
}

// SeedDemoDefinition loads a small sample definition (two items per eneatype,
// scale 0-5) and activates it. Used when the server runs on the in-memory
// store so the demo is usable without a loaded questionnaire.
func SeedDemoDefinition(store DefinitionInserter) error {
	exists, err := store.DefinitionVersionExists("demo", 1)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	def := &models.TestDefinition{
		ID:       "demo",
		Version:  1,
		Name:     "Test de demostración",
		Language: "es",
		Scale: models.Scale{
			Min: 0,
			Max: 5,
			Labels: map[string]string{
				"0": "Nunca",
				"1": "Casi nunca",
				"2": "Pocas veces",
				"3": "A veces",
				"4": "A menudo",
				"5": "Siempre",
			},
		},
	}
	stems := map[int][2]string{
		1: {"Me exijo hacer las cosas correctamente.", "Me molesta el desorden."},
		2: {"Me gusta sentirme necesitado por los demás.", "Ayudo aunque no me lo pidan."},
		3: {"Me importa proyectar una imagen de éxito.", "Me comparo con los demás."},
		4: {"Siento que soy diferente a la mayoría.", "Añoro lo que me falta."},
		5: {"Prefiero observar antes que participar.", "Necesito tiempo a solas."},
		6: {"Anticipo lo que podría salir mal.", "Busco seguridad en las normas."},
		7: {"Evito comprometerme con una sola opción.", "Busco experiencias nuevas."},
		8: {"Digo lo que pienso sin rodeos.", "Me hago cargo de las situaciones."},
		9: {"Evito los conflictos.", "Me adapto a lo que decidan otros."},
	}
	for eneatype := 1; eneatype <= 9; eneatype++ {
		q := models.Questionnaire{
			Eneatype: eneatype,
			Title:    fmt.Sprintf("Eneatipo %d", eneatype),
			Order:    eneatype,
		}
		for i, text := range stems[eneatype] {
			q.Items = append(q.Items, models.Item{Order: i + 1, Text: text, IsActive: true})
		}
		def.Questionnaires = append(def.Questionnaires, q)
	}
	return store.InsertDefinition(def, true, false)
}
