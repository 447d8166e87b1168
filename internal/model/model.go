// Package model содержит доменные сущности бота DEALHUNTER.
package model

// Deal описывает одно торговое предложение из каталога.
type Deal struct {
	ID            string  `yaml:"id" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	Price         string  `yaml:"price" json:"price"`
	OriginalPrice string  `yaml:"original_price,omitempty" json:"original_price,omitempty"`
	Discount      string  `yaml:"discount,omitempty" json:"discount,omitempty"`
	Rating        float64 `yaml:"rating" json:"rating"`
	Reviews       int     `yaml:"reviews" json:"reviews"`
	Store         string  `yaml:"store" json:"store"`
	Region        string  `yaml:"region" json:"region"`
	AfterSales    string  `yaml:"after_sales" json:"after_sales"`
	Delivery      string  `yaml:"delivery" json:"delivery"`
	PurchaseURL   string  `yaml:"purchase_url" json:"purchase_url"`
}

// HasMarkdown сообщает, нужно ли показывать зачёркнутую исходную цену и скидку.
func (d Deal) HasMarkdown() bool {
	return d.OriginalPrice != "" && d.Discount != ""
}

// Category описывает именованную группу предложений.
type Category struct {
	Name  string `yaml:"name"`
	Deals []Deal `yaml:"deals"`
}

// Catalog содержит упорядоченный набор категорий с выделенной категорией по умолчанию.
// После загрузки каталог не изменяется.
type Catalog struct {
	Categories      []Category `yaml:"categories"`
	DefaultCategory string     `yaml:"default"`
}

// DefaultDeals возвращает предложения категории по умолчанию.
func (c *Catalog) DefaultDeals() []Deal {
	for _, cat := range c.Categories {
		if cat.Name == c.DefaultCategory {
			return cat.Deals
		}
	}
	return nil
}

// DealCount возвращает общее число предложений во всех категориях.
func (c *Catalog) DealCount() int {
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Deals)
	}
	return n
}

// ParseMode задаёт режим разметки исходящего сообщения.
type ParseMode string

const (
	ParseModeNone ParseMode = ""
	ParseModeHTML ParseMode = "HTML"
)

// Action описывает интерактивную кнопку, прикреплённую к сообщению.
type Action struct {
	Label string
	Token string
}

// OutboundMessage описывает сообщение, которое нужно доставить в чат.
type OutboundMessage struct {
	ChatID    int64
	Text      string
	ParseMode ParseMode
	Actions   []Action
}
