package authtoken

import (
	"call-insights/internal/pagination"
	"call-insights/internal/schema"
)

var builder = schema.NewBuilder("AuthTokenSchema")

func CreateSchema() *schema.Schema {
	orgs := schema.Array(&schema.Schema{Types: []schema.Type{schema.TypeInteger}, Minimum: schema.Num(1)})
	orgs.MinItems = schema.Int(1)
	orgs.UniqueItems = true

	return builder.Named("create", schema.Object(
		schema.Merge(
			schema.String("name", schema.StringOptions{MaxLength: MaxNameLength}),
			schema.Fields{"orgs": orgs},
		),
		"name", "orgs",
	))
}

func ListSchema() *schema.Schema {
	return builder.Named("getList", schema.Object(pagination.QueryFields()))
}

func OneSchema() *schema.Schema {
	return builder.Named("getOne", schema.Object(schema.ID("id"), "id"))
}

// Schemas lists every schema of the module for startup compilation.
func Schemas() []*schema.Schema {
	return []*schema.Schema{CreateSchema(), ListSchema(), OneSchema()}
}
