// Package catalog загружает и проверяет статический каталог предложений.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/dealhunter-bot/internal/action"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
	"github.com/mmeshcher/dealhunter-bot/internal/validation"
)

//go:embed default.yaml
var defaultCatalog []byte

var (
	// ErrNoCategories возвращается для каталога без категорий.
	ErrNoCategories = errors.New("catalog has no categories")
	// ErrInvalidCategory возвращается для пустого, неуникального или не строчного имени категории.
	ErrInvalidCategory = errors.New("invalid category name")
	// ErrUnknownDefault возвращается, если категория по умолчанию отсутствует в каталоге.
	ErrUnknownDefault = errors.New("default category not found")
	// ErrInvalidDealID возвращается для идентификатора, непригодного для токена кнопки.
	ErrInvalidDealID = errors.New("invalid deal id")
	// ErrDuplicateDealID возвращается, если идентификатор встречается в каталоге дважды.
	ErrDuplicateDealID = errors.New("duplicate deal id")
)

// Builtin возвращает встроенный каталог.
func Builtin() (*model.Catalog, error) {
	return Parse(defaultCatalog)
}

// Load читает каталог из YAML-файла.
func Load(path string) (*model.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML-описание каталога и проверяет его.
func Parse(data []byte) (*model.Catalog, error) {
	var c model.Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := Validate(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate проверяет инварианты каталога: уникальность категорий и
// идентификаторов предложений во всём каталоге, наличие категории по умолчанию.
func Validate(c *model.Catalog) error {
	if len(c.Categories) == 0 {
		return ErrNoCategories
	}

	prefixLen := len(action.KindPurchase.Prefix())
	categories := make(map[string]struct{}, len(c.Categories))
	ids := make(map[string]string, c.DealCount())

	for _, cat := range c.Categories {
		if cat.Name == "" || cat.Name != strings.ToLower(cat.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, cat.Name)
		}
		if _, ok := categories[cat.Name]; ok {
			return fmt.Errorf("%w: %q is declared twice", ErrInvalidCategory, cat.Name)
		}
		categories[cat.Name] = struct{}{}

		for _, d := range cat.Deals {
			if !validation.IsValidDealID(d.ID, prefixLen) {
				return fmt.Errorf("%w: %q in category %q", ErrInvalidDealID, d.ID, cat.Name)
			}
			if other, ok := ids[d.ID]; ok {
				return fmt.Errorf("%w: %q in categories %q and %q", ErrDuplicateDealID, d.ID, other, cat.Name)
			}
			ids[d.ID] = cat.Name
		}
	}

	if _, ok := categories[c.DefaultCategory]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDefault, c.DefaultCategory)
	}

	return nil
}
