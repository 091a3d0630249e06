package modules

import (
	"embed"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/shaiso/stagerun/internal/recipe"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Factory создаёт новый экземпляр стадии.
type Factory func() Module

// Entry — зарегистрированный вариант модуля.
type Entry struct {
	Info
	Factory  Factory
	Defaults *Defaults
}

// Registry — реестр вариантов стадий, ключ — name:method.
//
// Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	global  *Defaults
}

// NewRegistry создаёт пустой реестр с глобальными значениями по умолчанию.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		global:  GlobalDefaults(),
	}
}

// DefaultRegistry создаёт реестр со всеми встроенными стадиями.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(NewTopoAA, embeddedDefaults("topoaa"))
	r.MustRegister(NewEMScoring, embeddedDefaults("emscoring"))
	r.MustRegister(NewSeleTop, embeddedDefaults("seletop"))
	r.MustRegister(NewClustFCC, embeddedDefaults("clustfcc"))
	r.MustRegister(NewContactMap, embeddedDefaults("contactmap"))

	return r
}

// GlobalDefaults возвращает параметры, общие для всех стадий.
func GlobalDefaults() *Defaults {
	return embeddedDefaults("global")
}

func embeddedDefaults(name string) *Defaults {
	data, err := defaultsFS.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		panic(fmt.Sprintf("embedded defaults %s: %v", name, err))
	}
	return MustLoadDefaults(data)
}

// Register регистрирует вариант модуля.
// Если вариант с таким ключом уже есть, он будет перезаписан.
func (r *Registry) Register(factory Factory, defaults *Defaults) error {
	if factory == nil {
		return fmt.Errorf("%w: nil factory", ErrInvalidDefaults)
	}
	if defaults == nil {
		defaults = &Defaults{}
	}

	info := factory().Info()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.Key()] = Entry{Info: info, Factory: factory, Defaults: defaults}
	return nil
}

// MustRegister регистрирует вариант или паникует.
func (r *Registry) MustRegister(factory Factory, defaults *Defaults) {
	if err := r.Register(factory, defaults); err != nil {
		panic(err)
	}
}

// Get возвращает вариант модуля.
// Возвращает ErrUnknownModule, если вариант не найден.
func (r *Registry) Get(name, method string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name+":"+method]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s:%s", ErrUnknownModule, name, method)
	}
	return e, nil
}

// New создаёт экземпляр стадии.
func (r *Registry) New(name, method string) (Module, error) {
	e, err := r.Get(name, method)
	if err != nil {
		return nil, err
	}
	return e.Factory(), nil
}

// Has проверяет, зарегистрирован ли вариант. Реализует recipe.Resolver.
func (r *Registry) Has(name, method string) bool {
	_, err := r.Get(name, method)
	return err == nil
}

// Keys возвращает ключи name:method в алфавитном порядке.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries возвращает все варианты, упорядоченные по ключу.
func (r *Registry) Entries() []Entry {
	keys := r.Keys()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.entries[k])
	}
	return out
}

// Names возвращает имена модулей без повторов.
func (r *Registry) Names() []string {
	var names []string
	for _, e := range r.Entries() {
		if !slices.Contains(names, e.Name) {
			names = append(names, e.Name)
		}
	}
	return names
}

// Count возвращает количество вариантов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Unregister удаляет вариант из реестра.
func (r *Registry) Unregister(name, method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name+":"+method)
}

// ResolveParams собирает параметры стадии:
//
//	глобальные < значения варианта < пользовательские
func (r *Registry) ResolveParams(name, method string, user map[string]any) (map[string]any, error) {
	e, err := r.Get(name, method)
	if err != nil {
		return nil, err
	}
	return recipe.MergeParams(r.global.Values(), e.Defaults.Values(), user), nil
}

// CheckParams проверяет пользовательские параметры стадии:
// каждый ключ должен быть описан в значениях по умолчанию и иметь верный тип.
// Реализует recipe.ParamChecker.
func (r *Registry) CheckParams(name, method string, params map[string]any) error {
	e, err := r.Get(name, method)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p, ok := e.Defaults.Lookup(k)
		if !ok {
			p, ok = r.global.Lookup(k)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParam, k)
		}
		if err := p.Check(params[k]); err != nil {
			return err
		}
	}
	return nil
}

// RenderDefaults возвращает TOML-фрагмент с параметрами модуля уровня level.
// Модуль ищется по имени с методом по умолчанию.
func RenderDefaults(r *Registry, name, level string) (string, error) {
	e, err := r.Get(name, recipe.DefaultMethod)
	if err != nil {
		return "", err
	}
	return e.Defaults.Render(name, level)
}
