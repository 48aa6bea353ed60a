package clients

import (
	"call-insights/internal/pagination"
	"call-insights/internal/schema"
)

var builder = schema.NewBuilder("ClientSchema")

func ListSchema() *schema.Schema {
	return builder.Named("getList", schema.OpenObject(schema.Merge(
		pagination.QueryFields(),
		schema.Fields{"sort": schema.OpenObject(schema.SortBy("createdAt"))},
	)))
}

func OneSchema() *schema.Schema {
	return builder.Named("getOne", schema.Object(schema.ID("id"), "id"))
}

func Schemas() []*schema.Schema {
	return []*schema.Schema{ListSchema(), OneSchema()}
}
