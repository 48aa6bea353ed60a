package calls

import (
	"call-insights/internal/pagination"
	"call-insights/internal/schema"
)

var builder = schema.NewBuilder("CallSchema")

func requiredStrings(keys ...string) schema.Fields {
	parts := make([]schema.Fields, len(keys))
	for i, k := range keys {
		parts[i] = schema.String(k, schema.StringOptions{})
	}
	return schema.Merge(parts...)
}

func stringList() *schema.Schema {
	return schema.Array(&schema.Schema{Types: []schema.Type{schema.TypeString}, Transform: []string{schema.TransformTrim}})
}

// section is an object whose listed string keys are all required.
func section(extra schema.Fields, keys ...string) *schema.Schema {
	required := append([]string(nil), keys...)
	for k := range extra {
		required = append(required, k)
	}
	return schema.OpenObject(schema.Merge(requiredStrings(keys...), extra), required...)
}

func positive() schema.IntegerOptions {
	one := float64(1)
	return schema.IntegerOptions{Min: &one}
}

func CreateSchema() *schema.Schema {
	zero := float64(0)
	transcription := schema.OpenObject(schema.Merge(
		schema.String("name", schema.StringOptions{MaxLength: 255}),
		schema.String("content", schema.StringOptions{}),
		schema.String("mime_type", schema.StringOptions{Optional: true}),
	), "name", "content")

	return builder.Named("create", schema.OpenObject(schema.Merge(
		schema.Integer("call_info_id", positive()),
		schema.String("client_phone", schema.StringOptions{}),
		schema.DateTime("call_date", false),
		schema.String("call_type", schema.StringOptions{}),
		schema.Integer("call_duration", schema.IntegerOptions{Min: &zero}),
		schema.String("manager_name", schema.StringOptions{Optional: true}),
		schema.String("manager_phone", schema.StringOptions{Optional: true}),
		schema.Integer("org_id", positive()),
		schema.Fields{"transcribation": transcription},
	), "call_info_id", "client_phone", "call_date", "call_type", "call_duration", "org_id"))
}

func insightSchema() *schema.Schema {
	return section(schema.Merge(
		schema.Fields{"категории": stringList()},
		schema.Integer("упоминания", schema.IntegerOptions{}),
		schema.Integer("интенсивность", schema.IntegerOptions{}),
	), "тип")
}

func ratingSchema() *schema.Schema {
	return section(nil, "балл", "причина")
}

func UploadInfoSchema() *schema.Schema {
	relative := section(nil, "имя", "возраст", "место_работы", "степень_родства")
	client := section(schema.Fields{"информация_о_близких": relative},
		"имя", "пол", "возраст", "должность", "место_работы", "наличие_детей",
		"где_живет_клиент", "хобби_и_интересы", "семейное_положение", "сфера_деятельности",
		"причина_оценки_возраста",
	)
	callInfo := section(nil,
		"суть_звонка", "инициатор_тем", "выявленная_проблема", "кто_управляет_беседой",
		"статус_решения_проблемы", "дата_следующего_контакта", "чем_интересовался_клиент",
	)
	manager := section(nil, "что_должен_сделать_менеджер")
	satisfaction := section(schema.Fields{
		"рекомендации":         stringList(),
		"начальная_оценка":     ratingSchema(),
		"окончательная_оценка": ratingSchema(),
	}, "сравнение_удовлетворенности")
	insights := section(schema.Fields{
		"боли":        insightSchema(),
		"интересы":    insightSchema(),
		"потребности": insightSchema(),
	})

	result := section(schema.Fields{
		"данные_о_клиенте":               client,
		"информация_по_звонку":           callInfo,
		"информация_по_менеджеру":        manager,
		"удовлетворенность_клиента":      satisfaction,
		"классификация_инсайтов_клиента": insights,
	})
	info := section(schema.Fields{"result": result}, "name")

	return builder.Named("uploadInfo", schema.OpenObject(schema.Merge(
		schema.Integer("call_info_id", positive()),
		schema.Fields{"info": info},
	), "call_info_id", "info"))
}

func ListSchema() *schema.Schema {
	return builder.Named("getList", schema.OpenObject(schema.Merge(
		pagination.QueryFields(),
		schema.Fields{"sort": schema.OpenObject(schema.SortBy("datetime"))},
	)))
}

func OneSchema() *schema.Schema {
	return builder.Named("getOne", schema.Object(schema.ID("id"), "id"))
}

func Schemas() []*schema.Schema {
	return []*schema.Schema{CreateSchema(), UploadInfoSchema(), ListSchema(), OneSchema()}
}
