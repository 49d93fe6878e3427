package engine

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// orderData — данные шаблона, как их видит шаг после fetch.
func orderData() *TemplateData {
	data := NewTemplateData(map[string]any{
		"customer": "Ann Lee",
		"total":    250,
		"tags":     []string{"vip", "eu"},
		"note":     "",
	})
	data.Steps["fetch"] = map[string]any{
		"status_code": 200,
		"body": map[string]any{
			"items": []any{"a", "b", "c"},
			"count": 3,
		},
	}
	data.Vars["region"] = "eu-west"
	data.Env["TOKEN"] = "abc"
	return data
}

func TestNewTemplateData(t *testing.T) {
	data := NewTemplateData(nil)
	if data.Input != nil {
		t.Errorf("expected nil input, got %v", data.Input)
	}
	// Карты создаются сразу, чтобы шаблоны не падали на nil map
	if data.Steps == nil || data.Vars == nil || data.Env == nil {
		t.Error("maps should not be nil")
	}
}

func TestEnvFromProcess(t *testing.T) {
	t.Setenv("FLOWGRAPH_TEST_TOKEN", "secret")
	t.Setenv("OTHER_TOKEN", "nope")

	env := EnvFromProcess("FLOWGRAPH_TEST_")
	if env["TOKEN"] != "secret" {
		t.Errorf("expected prefixed var without prefix, got %v", env)
	}
	if _, ok := env["OTHER_TOKEN"]; ok {
		t.Error("unprefixed vars should not be exposed")
	}
	if len(EnvFromProcess("")) != 0 {
		t.Error("empty prefix should expose nothing")
	}
}

func TestRender(t *testing.T) {
	data := orderData()

	cases := []struct{ tmpl, want string }{
		{"Plain text", "Plain text"},
		{"Dear {{ .Input.customer }}", "Dear Ann Lee"},
		{"{{ .Input.total }} EUR", "250 EUR"},
		{"{{ .Steps.fetch.status_code }}", "200"},
		{"{{ .Steps.fetch.body.count }}", "3"},
		{"{{ len .Steps.fetch.body.items }}", "3"},
		{"{{ .Vars.region }}", "eu-west"},
		{"Bearer {{ .Env.TOKEN }}", "Bearer abc"},
		{"{{ if gt .Input.total 100 }}big{{ end }}", "big"},
		{"{{ lower .Input.customer }}", "ann lee"},
		{"{{ upper .Vars.region }}", "EU-WEST"},
		{`{{ contains .Input.customer "Lee" }}`, "true"},
		{`{{ hasPrefix .Vars.region "eu" }}`, "true"},
		{`{{ hasSuffix .Vars.region "west" }}`, "true"},
		{`{{ replace .Vars.region "-" "_" }}`, "eu_west"},
		{`{{ join "," .Input.tags }}`, "vip,eu"},
		{`{{ index (split "-" .Vars.region) 1 }}`, "west"},
		{`{{ trim "  x  " }}`, "x"},
		{`{{ default "n/a" .Input.note }}`, "n/a"},
		{`{{ default "n/a" (index .Input "missing") }}`, "n/a"},
		{`{{ default "n/a" .Input.customer }}`, "Ann Lee"},
		{`{{ coalesce .Input.note (index .Input "missing") "x" }}`, "x"},
		{`{{ index .Steps "fetch" "body" "count" }}`, "3"},
		{`{{ json .Input.tags }}`, `["vip","eu"]`},
		{`{{ toJSON .Steps.fetch.body.items }}`, `["a","b","c"]`},
	}

	for _, tc := range cases {
		got, err := Render(tc.tmpl, data)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.tmpl, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.tmpl, tc.want, got)
		}
	}
}

func TestRender_Errors(t *testing.T) {
	// Незакрытое действие
	_, err := Render("{{ .Input.customer", orderData())
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}

	// У строки нет полей
	_, err = Render("{{ .Input.name }}", NewTemplateData("plain string input"))
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender, got %v", err)
	}
}

func TestRender_MissingKey(t *testing.T) {
	// Опечатка в пути не превращается в "<no value>"
	for _, tmpl := range []string{
		"{{ .Input.missing }}",
		"{{ .Steps.fetch.body.missing }}",
		"{{ .Steps.notRunYet.status_code }}",
		"{{ .Vars.token }}",
		"{{ .Env.SECRET }}",
	} {
		got, err := Render(tmpl, orderData())
		if !errors.Is(err, ErrTemplateRender) {
			t.Errorf("%s: expected ErrTemplateRender, got %q (%v)", tmpl, got, err)
		}
	}

	// В конфигурации ошибка называет ключ
	_, err := RenderConfig(map[string]any{"url": "https://{{ .Vars.host }}/orders"}, orderData())
	if !errors.Is(err, ErrTemplateRender) || !strings.HasPrefix(err.Error(), "url: ") {
		t.Errorf("expected render error for url, got %v", err)
	}
}

func TestRender_FromJSON(t *testing.T) {
	result, err := Render("{{ (fromJSON .Input.raw).id }}", NewTemplateData(map[string]any{"raw": `{"id": 7}`}))
	if err != nil || result != "7" {
		t.Errorf("expected 7, got %q (%v)", result, err)
	}

	// Невалидный JSON прерывает рендеринг
	_, err = Render("{{ fromJSON .Input.raw }}", NewTemplateData(map[string]any{"raw": "{"}))
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected render error, got %v", err)
	}
}

func TestRenderValue_KeepsNonStrings(t *testing.T) {
	data := orderData()
	for _, v := range []any{nil, 42, 1.5, true} {
		got, err := RenderValue(v, data)
		if err != nil || got != v {
			t.Errorf("%v: expected unchanged value, got %v (%v)", v, got, err)
		}
	}
}

func TestRenderValue_Nested(t *testing.T) {
	value := map[string]any{
		"to":      []any{"{{ .Input.customer }}", 42},
		"headers": map[string]string{"X-Region": "{{ .Vars.region }}"},
		"labels":  []string{"{{ index .Input.tags 0 }}"},
		"body": map[string]any{
			"count": "{{ .Steps.fetch.body.count }}",
		},
	}

	got, err := RenderValue(value, orderData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]any{
		"to":      []any{"Ann Lee", 42},
		"headers": map[string]string{"X-Region": "eu-west"},
		"labels":  []string{"vip"},
		"body":    map[string]any{"count": "3"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// Исходное значение не меняется
	if value["to"].([]any)[0] != "{{ .Input.customer }}" {
		t.Error("input value was mutated")
	}
}

func TestRenderConfig(t *testing.T) {
	result, err := RenderConfig(nil, orderData())
	if err != nil || result == nil || len(result) != 0 {
		t.Errorf("nil config should render to empty map, got %v (%v)", result, err)
	}

	result, err = RenderConfig(map[string]any{
		"method": "GET",
		"url":    "https://{{ .Vars.region }}.example.com/orders",
	}, orderData())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["url"] != "https://eu-west.example.com/orders" || result["method"] != "GET" {
		t.Errorf("unexpected config: %v", result)
	}
}

func TestRenderConfig_ErrorNamesKey(t *testing.T) {
	_, err := RenderConfig(map[string]any{
		"headers": map[string]any{"X-Name": "{{ .Input.name }}"},
	}, NewTemplateData("plain string input"))

	if !errors.Is(err, ErrTemplateRender) {
		t.Fatalf("expected ErrTemplateRender, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "headers: X-Name: ") {
		t.Errorf("error should name the config path, got %v", err)
	}
}

func TestRenderer_Cache(t *testing.T) {
	r := NewRenderer()
	data := orderData()

	for range 3 {
		if _, err := r.String("{{ .Input.customer }}", data); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(r.cache) != 1 {
		t.Errorf("expected 1 cached template, got %d", len(r.cache))
	}

	// Строки без шаблона и ошибки разбора не кэшируются
	r.String("plain", data)
	r.String("{{ .Broken", data)
	if len(r.cache) != 1 {
		t.Errorf("expected cache size 1, got %d", len(r.cache))
	}
}
