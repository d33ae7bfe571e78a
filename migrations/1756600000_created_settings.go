package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("settings")
		collection.Fields.Add(
			&core.TextField{Name: "key", Required: true},
			&core.TextField{Name: "value"},
		)
		collection.AddIndex("idx_settings_key", true, "key", "")

		if err := app.Save(collection); err != nil {
			return err
		}

		// Seed the serving-time estimate staff can tune from the admin UI.
		record := core.NewRecord(collection)
		record.Set("key", "average_serving_time")
		record.Set("value", "5")
		return app.Save(record)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("settings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
