// Package resolver подбирает предложения каталога по тексту запроса и
// восстанавливает предложение по токену нажатой кнопки.
package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/dealhunter-bot/internal/action"
	"github.com/mmeshcher/dealhunter-bot/internal/model"
)

// ErrDealNotFound возвращается, если предложения с таким идентификатором нет в каталоге.
var ErrDealNotFound = errors.New("deal not found")

// Match описывает, на каком шаге подбора найдены предложения.
type Match string

const (
	MatchCategory Match = "category"
	MatchKeyword  Match = "keyword"
	MatchDefault  Match = "default"
)

// Result содержит упорядоченный список предложений и способ, которым он получен.
type Result struct {
	Deals []model.Deal
	Match Match
}

// Resolve подбирает предложения для запроса, уже приведённого к нижнему регистру и обрезанного.
//
// Сначала ищется первая категория, имя которой содержится в запросе или
// содержит запрос. Затем берутся предложения, в названии или магазине которых есть
// запрос, в порядке каталога. Если ничего не найдено, возвращается категория
// по умолчанию.
func Resolve(query string, c *model.Catalog) Result {
	if query == "" {
		return Result{Deals: c.DefaultDeals(), Match: MatchDefault}
	}

	for _, cat := range c.Categories {
		if strings.Contains(query, cat.Name) || strings.Contains(cat.Name, query) {
			return Result{Deals: cat.Deals, Match: MatchCategory}
		}
	}

	var deals []model.Deal
	for _, cat := range c.Categories {
		for _, d := range cat.Deals {
			if strings.Contains(strings.ToLower(d.Name), query) ||
				strings.Contains(strings.ToLower(d.Store), query) {
				deals = append(deals, d)
			}
		}
	}
	if len(deals) > 0 {
		return Result{Deals: deals, Match: MatchKeyword}
	}

	return Result{Deals: c.DefaultDeals(), Match: MatchDefault}
}

// FindDeal ищет предложение по идентификатору во всех категориях.
func FindDeal(c *model.Catalog, id string) (model.Deal, bool) {
	for _, cat := range c.Categories {
		for _, d := range cat.Deals {
			if d.ID == id {
				return d, true
			}
		}
	}
	return model.Deal{}, false
}

// ResolvePurchase восстанавливает предложение по токену кнопки покупки.
func ResolvePurchase(token string, c *model.Catalog) (model.Deal, error) {
	a, err := action.Parse(token)
	if err != nil {
		return model.Deal{}, err
	}
	if a.Kind != action.KindPurchase {
		return model.Deal{}, fmt.Errorf("%w: %s", action.ErrUnknownAction, a.Kind)
	}

	d, ok := FindDeal(c, a.DealID)
	if !ok {
		return model.Deal{}, fmt.Errorf("%w: %s", ErrDealNotFound, a.DealID)
	}

	return d, nil
}
