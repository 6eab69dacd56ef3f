package seeder

import (
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/bloom/internal/entity"
)

// MenuItem is one entry of the café menu.
type MenuItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
}

// Line turns the menu item into an order line for qty units.
func (m MenuItem) Line(qty int) entity.OrderLine {
	return entity.OrderLine{ItemID: m.ID, ItemName: m.Name, Quantity: qty, Price: m.Price}
}

func item(id, name string, price int64, category string) MenuItem {
	return MenuItem{ID: id, Name: name, Price: decimal.NewFromInt(price), Category: category}
}

// Categories lists menu sections in display order.
var Categories = []string{
	"COLD COFFEE", "SHAKE", "MOCKTAIL", "DESERT", "BURGER",
	"SANDWICH", "SOUP", "CHINESE", "RICE", "TANDOOR",
}

// Menu is the catalog sample orders are drawn from.
var Menu = []MenuItem{
	item("cc1", "Cold Coffee", 149, "COLD COFFEE"),
	item("cc2", "Cold Coffee With Ice Cream", 179, "COLD COFFEE"),
	item("cc3", "Cookies Tea / Masala Tea", 49, "COLD COFFEE"),
	item("cc4", "Black Tea", 39, "COLD COFFEE"),
	item("cc5", "Hot Coffee", 59, "COLD COFFEE"),
	item("sh1", "Vanila Shake", 149, "SHAKE"),
	item("sh2", "Chocolate Shake", 159, "SHAKE"),
	item("sh3", "Kit Kat Shake", 179, "SHAKE"),
	item("sh4", "Oreo Shake", 169, "SHAKE"),
	item("sh5", "Butter Scotch Shake", 169, "SHAKE"),
	item("mo1", "Sunny Setup", 169, "MOCKTAIL"),
	item("mo2", "Blue Lugan", 149, "MOCKTAIL"),
	item("mo3", "Panch Mel", 179, "MOCKTAIL"),
	item("mo4", "Fresh Lemon Soda", 99, "MOCKTAIL"),
	item("mo5", "Virgin Mojito", 139, "MOCKTAIL"),
	item("de1", "Vanila Ice Cream", 49, "DESERT"),
	item("de2", "Butter Scotch Ice Cream", 59, "DESERT"),
	item("de3", "Chocolate Ice Cream", 69, "DESERT"),
	item("de4", "Rosperel Ice Cream", 89, "DESERT"),
	item("bu1", "Veg Burger", 59, "BURGER"),
	item("bu2", "Veg Cheese Burger", 89, "BURGER"),
	item("sa1", "Veg Grill Sandwich", 129, "SANDWICH"),
	item("sa2", "Veg Sandwich & French Fry", 79, "SANDWICH"),
	item("sa3", "Bombay Sandwich", 99, "SANDWICH"),
	item("sa4", "Chipotle Sandwich", 89, "SANDWICH"),
	item("sa5", "Bread Butter Cheese Sandwich", 59, "SANDWICH"),
	item("sa6", "Paneer Sandwich", 169, "SANDWICH"),
	item("so1", "Hot & Sour Soup", 119, "SOUP"),
	item("so2", "Manchau Soup", 109, "SOUP"),
	item("so3", "Tomato Soup", 129, "SOUP"),
	item("so4", "Sweet Corn Soup", 99, "SOUP"),
	item("so5", "Lemon Coriander Soup", 130, "SOUP"),
	item("so6", "Cream Mushroom Soup", 149, "SOUP"),
	item("ch1", "Paneer Chilli", 239, "CHINESE"),
	item("ch2", "Honey Chilli", 289, "CHINESE"),
	item("ch3", "Chilli Potato", 199, "CHINESE"),
	item("ch4", "Chilli Mushroom", 239, "CHINESE"),
	item("ch5", "Manchurian Gravy & Dry", 199, "CHINESE"),
	item("ch6", "Noodles", 169, "CHINESE"),
	item("ch7", "Hakka Noodles", 139, "CHINESE"),
	item("ch8", "Schezwan Noodles", 179, "CHINESE"),
	item("ri1", "Fried Rice", 179, "RICE"),
	item("ri2", "Schezwan Rice", 169, "RICE"),
	item("ri3", "Bloom Special Rice", 189, "RICE"),
	item("ta1", "Paneer Tikka", 269, "TANDOOR"),
	item("ta2", "Achari Paneer Tikka", 239, "TANDOOR"),
	item("ta3", "Malai Paneer Tikka", 299, "TANDOOR"),
	item("ta4", "Hara Bhara Kabab", 199, "TANDOOR"),
	item("ta5", "Corn Kabab", 219, "TANDOOR"),
	item("ta6", "Tandoori Soya Chap", 199, "TANDOOR"),
}

// Lookup finds a menu item by id.
func Lookup(id string) (MenuItem, bool) {
	for _, m := range Menu {
		if m.ID == id {
			return m, true
		}
	}
	return MenuItem{}, false
}
