package steps

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/flowgraph/internal/domain"
)

// Definition — запись таблицы шагов.
type Definition struct {
	// Kind — ключ (category, subtype).
	Kind domain.Kind

	// Description — короткое описание для редактора и CLI.
	Description string

	// Validate — проверка конфигурации. Обязателен.
	Validate Validator

	// DefaultConfig — фабрика конфигурации по умолчанию. Обязательна.
	DefaultConfig func() map[string]any

	// Handler — исполнитель. Обязателен.
	Handler Handler

	// Branching — шаг выбирает исходящие связи по output["branch"].
	Branching bool
}

// brancher — шаг, который выбирает ветку.
type brancher interface {
	Branching() bool
}

// DefinitionFor собирает Definition из реализации Step.
func DefinitionFor(step Step, description string) Definition {
	def := Definition{
		Kind:          step.Kind(),
		Description:   description,
		Validate:      step.Validate,
		DefaultConfig: step.DefaultConfig,
		Handler:       step,
	}
	if b, ok := step.(brancher); ok {
		def.Branching = b.Branching()
	}
	return def
}

// Registry — таблица шагов (category × subtype → Definition).
//
// Заполняется при старте процесса и не меняется во время run.
// Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	defs   map[domain.Kind]Definition
	logger *slog.Logger
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defs:   make(map[domain.Kind]Definition),
		logger: logger,
	}
}

// Options — зависимости стандартных шагов.
type Options struct {
	Logger *slog.Logger

	// Mailer — отправка писем для action/email. Nil — шаг падает при выполнении.
	Mailer Mailer

	// DB — подключение для action/database. Nil — шаг падает при выполнении.
	DB Querier

	// HTTPTransport — транспорт для action/http (для тестов и прокси).
	HTTPTransport http.RoundTripper

	// Now — источник времени для триггеров.
	Now func() time.Time
}

// DefaultRegistry создаёт реестр со всеми стандартными шагами.
func DefaultRegistry(opts Options) *Registry {
	r := NewRegistry(opts.Logger)

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	httpStep := NewHTTPStep()
	httpStep.transport = opts.HTTPTransport

	r.MustRegister(DefinitionFor(&ManualTrigger{now: now}, "Start the workflow by hand"))
	r.MustRegister(DefinitionFor(NewWebhookTrigger(), "Start the workflow from an incoming webhook payload"))
	r.MustRegister(DefinitionFor(&ScheduleTrigger{now: now}, "Start the workflow on a cron schedule"))
	r.MustRegister(DefinitionFor(httpStep, "Send an HTTP request"))
	r.MustRegister(DefinitionFor(NewEmailStep(opts.Mailer), "Send an email"))
	r.MustRegister(DefinitionFor(NewDatabaseStep(opts.DB), "Run a SQL query or statement"))
	r.MustRegister(DefinitionFor(NewTransformStep(), "Reshape data with template mappings"))
	r.MustRegister(DefinitionFor(NewDelayStep(), "Pause before continuing"))
	r.MustRegister(DefinitionFor(NewIfGate(), "Route to the true or false branch"))
	r.MustRegister(DefinitionFor(NewFilterGate(), "Keep array items matching a condition"))

	return r
}

// Register регистрирует определение.
//
// Определение без валидатора, фабрики конфигурации или обработчика
// отклоняется. Повторная регистрация того же ключа перезаписывает
// запись с предупреждением в лог.
func (r *Registry) Register(def Definition) error {
	if !def.Kind.IsKnown() {
		return fmt.Errorf("%w: %s", ErrUnknownKind, def.Kind)
	}
	if def.Validate == nil {
		return fmt.Errorf("%w: %s", ErrMissingValidator, def.Kind)
	}
	if def.DefaultConfig == nil {
		return fmt.Errorf("%w: %s", ErrMissingDefaults, def.Kind)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: %s", ErrMissingHandler, def.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Kind]; exists {
		r.logger.Warn("step definition overwritten", "kind", def.Kind.String())
	}
	r.defs[def.Kind] = def
	return nil
}

// MustRegister регистрирует определение и паникует при ошибке.
// Используется при сборке реестра на старте.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup возвращает определение по (category, subtype).
func (r *Registry) Lookup(category domain.Category, subtype domain.Subtype) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[domain.Kind{Category: category, Subtype: subtype}]
	return def, ok
}

// Get возвращает определение по ключу.
// Возвращает ErrStepNotFound, если ключ не зарегистрирован.
func (r *Registry) Get(kind domain.Kind) (Definition, error) {
	def, ok := r.Lookup(kind.Category, kind.Subtype)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrStepNotFound, kind)
	}
	return def, nil
}

// Validate проверяет конфигурацию шага валидатором его определения.
func (r *Registry) Validate(category domain.Category, subtype domain.Subtype, config map[string]any) []string {
	def, ok := r.Lookup(category, subtype)
	if !ok {
		return []string{NotRegisteredMessage(domain.Kind{Category: category, Subtype: subtype})}
	}
	if config == nil {
		config = map[string]any{}
	}
	return def.Validate(config)
}

// NotRegisteredMessage — текст ошибки для незарегистрированного шага.
func NotRegisteredMessage(kind domain.Kind) string {
	return fmt.Sprintf("no handler registered for %s", kind)
}

// Has проверяет, зарегистрирован ли ключ.
func (r *Registry) Has(kind domain.Kind) bool {
	_, ok := r.Lookup(kind.Category, kind.Subtype)
	return ok
}

// Kinds возвращает зарегистрированные ключи, отсортированные по "category/subtype".
func (r *Registry) Kinds() []domain.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]domain.Kind, 0, len(r.defs))
	for k := range r.defs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].String() < kinds[j].String()
	})
	return kinds
}

// Definitions возвращает определения в порядке Kinds.
func (r *Registry) Definitions() []Definition {
	kinds := r.Kinds()

	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(kinds))
	for _, k := range kinds {
		if def, ok := r.defs[k]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// Missing возвращает допустимые ключи, для которых нет определения.
func (r *Registry) Missing() []domain.Kind {
	var missing []domain.Kind
	for _, k := range domain.KnownKinds() {
		if !r.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(kind domain.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, kind)
}
