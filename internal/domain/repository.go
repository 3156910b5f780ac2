package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
//
// Все изменяющие методы атомарны: проверка версии, запись заказа и
// обновление слота открытого заказа клиента выполняются как одно целое.
type OrderRepository interface {
	// Create сохраняет новый открытый заказ и закрепляет его за клиентом.
	// Возвращает ErrOrderModified, если у клиента уже есть открытый заказ.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// Save записывает изменённый открытый заказ, если в хранилище сейчас лежит expectedVersion.
	// Иначе ErrOrderModified.
	Save(ctx context.Context, order Order, expectedVersion int64) error
	// Submit записывает отправленный заказ, освобождает слот клиента и
	// обновляет отметку истории. Проверка версии такая же, как в Save.
	Submit(ctx context.Context, order Order, expectedVersion int64) error
	// ListSubmitted возвращает историю клиента, новые заказы первыми.
	ListSubmitted(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// CustomerRepository хранит профили клиентов.
type CustomerRepository interface {
	// Get возвращает клиента или ErrCustomerNotFound.
	Get(ctx context.Context, id string) (Customer, error)
	// UpdateAddress заменяет адрес клиента.
	UpdateAddress(ctx context.Context, id string, address Address) error
	// UpdateInfo заменяет атрибуты варианта. Тип клиента менять нельзя.
	UpdateInfo(ctx context.Context, id string, info CustomerInfo) error
}

// CustomerSeeder используется в dev-окружении и тестах для наполнения хранилища.
type CustomerSeeder interface {
	Upsert(ctx context.Context, customer Customer) error
}

// CatalogSeeder наполняет справочник товаров демонстрационными данными.
type CatalogSeeder interface {
	UpsertProduct(ctx context.Context, p Product) error
	UpsertCategory(ctx context.Context, c Category) error
}
