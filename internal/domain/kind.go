package domain

// Category — категория шага.
type Category string

const (
	// CategoryTrigger — шаг, с которого начинается run.
	CategoryTrigger Category = "trigger"

	// CategoryAction — шаг, выполняющий действие.
	CategoryAction Category = "action"

	// CategoryLogic — логический шаг (ветвление, фильтрация).
	CategoryLogic Category = "logic"
)

// Subtype — подтип шага внутри категории.
type Subtype string

// Подтипы триггеров.
const (
	SubtypeManual   Subtype = "manual"
	SubtypeWebhook  Subtype = "webhook"
	SubtypeSchedule Subtype = "schedule"
)

// Подтипы действий.
const (
	SubtypeHTTP      Subtype = "http"
	SubtypeEmail     Subtype = "email"
	SubtypeDatabase  Subtype = "database"
	SubtypeTransform Subtype = "transform"
	SubtypeDelay     Subtype = "delay"
)

// Подтипы логических шагов.
const (
	SubtypeIf     Subtype = "if"
	SubtypeFilter Subtype = "filter"
)

// Kind — ключ таблицы шагов: пара (category, subtype).
type Kind struct {
	Category Category `json:"category"`
	Subtype  Subtype  `json:"subtype"`
}

// String возвращает "category/subtype".
func (k Kind) String() string {
	return string(k.Category) + "/" + string(k.Subtype)
}

// knownKinds — все допустимые комбинации category × subtype.
var knownKinds = []Kind{
	{CategoryTrigger, SubtypeManual},
	{CategoryTrigger, SubtypeWebhook},
	{CategoryTrigger, SubtypeSchedule},
	{CategoryAction, SubtypeHTTP},
	{CategoryAction, SubtypeEmail},
	{CategoryAction, SubtypeDatabase},
	{CategoryAction, SubtypeTransform},
	{CategoryAction, SubtypeDelay},
	{CategoryLogic, SubtypeIf},
	{CategoryLogic, SubtypeFilter},
}

// KnownKinds возвращает копию списка допустимых комбинаций.
func KnownKinds() []Kind {
	kinds := make([]Kind, len(knownKinds))
	copy(kinds, knownKinds)
	return kinds
}

// IsKnown проверяет, что комбинация category × subtype допустима.
func (k Kind) IsKnown() bool {
	for _, known := range knownKinds {
		if known == k {
			return true
		}
	}
	return false
}
