package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Dinner types ---

type CreateDinnerTypeParams struct {
	Name        string
	NameEn      string
	BasePrice   pgtype.Numeric
	Description pgtype.Text
}

func (q *Queries) CreateDinnerType(ctx context.Context, arg CreateDinnerTypeParams) (DinnerType, error) {
	var d DinnerType
	err := q.db.QueryRow(ctx, `
		INSERT INTO dinner_types (name, name_en, base_price, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, name_en, base_price, description`,
		arg.Name, arg.NameEn, arg.BasePrice, arg.Description,
	).Scan(&d.ID, &d.Name, &d.NameEn, &d.BasePrice, &d.Description)
	return d, err
}

func (q *Queries) GetDinnerType(ctx context.Context, id uuid.UUID) (DinnerType, error) {
	var d DinnerType
	err := q.db.QueryRow(ctx, `
		SELECT id, name, name_en, base_price, description
		FROM dinner_types WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.NameEn, &d.BasePrice, &d.Description)
	return d, err
}

func (q *Queries) ListDinnerTypes(ctx context.Context) ([]DinnerType, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, name_en, base_price, description
		FROM dinner_types ORDER BY name_en`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dinners []DinnerType
	for rows.Next() {
		var d DinnerType
		if err := rows.Scan(&d.ID, &d.Name, &d.NameEn, &d.BasePrice, &d.Description); err != nil {
			return nil, err
		}
		dinners = append(dinners, d)
	}
	return dinners, rows.Err()
}

// --- Menu items ---

type CreateMenuItemParams struct {
	Name     string
	NameEn   string
	Price    pgtype.Numeric
	Category pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (name, name_en, price, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, name_en, price, category`,
		arg.Name, arg.NameEn, arg.Price, arg.Category,
	).Scan(&m.ID, &m.Name, &m.NameEn, &m.Price, &m.Category)
	return m, err
}

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	var m MenuItem
	err := q.db.QueryRow(ctx, `
		SELECT id, name, name_en, price, category FROM menu_items WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.NameEn, &m.Price, &m.Category)
	return m, err
}

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, name_en, price, category FROM menu_items ORDER BY name_en`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.NameEn, &m.Price, &m.Category); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// --- Dinner default items ---

type CreateDinnerMenuItemParams struct {
	DinnerTypeID    uuid.UUID
	MenuItemID      uuid.UUID
	DefaultQuantity int32
}

func (q *Queries) CreateDinnerMenuItem(ctx context.Context, arg CreateDinnerMenuItemParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO dinner_menu_items (dinner_type_id, menu_item_id, default_quantity)
		VALUES ($1, $2, $3)`,
		arg.DinnerTypeID, arg.MenuItemID, arg.DefaultQuantity,
	)
	return err
}

func (q *Queries) ListDinnerMenuItems(ctx context.Context, dinnerTypeID uuid.UUID) ([]DinnerMenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT dinner_type_id, menu_item_id, default_quantity
		FROM dinner_menu_items WHERE dinner_type_id = $1`, dinnerTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DinnerMenuItem
	for rows.Next() {
		var dm DinnerMenuItem
		if err := rows.Scan(&dm.DinnerTypeID, &dm.MenuItemID, &dm.DefaultQuantity); err != nil {
			return nil, err
		}
		items = append(items, dm)
	}
	return items, rows.Err()
}

// --- Serving styles ---

type CreateServingStyleParams struct {
	Name       string
	Multiplier pgtype.Numeric
}

func (q *Queries) CreateServingStyle(ctx context.Context, arg CreateServingStyleParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO serving_styles (name, multiplier) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET multiplier = EXCLUDED.multiplier`,
		arg.Name, arg.Multiplier,
	)
	return err
}

func (q *Queries) GetServingStyle(ctx context.Context, name string) (ServingStyle, error) {
	var s ServingStyle
	err := q.db.QueryRow(ctx, `
		SELECT name, multiplier FROM serving_styles WHERE name = $1`, name,
	).Scan(&s.Name, &s.Multiplier)
	return s, err
}

func (q *Queries) ListServingStyles(ctx context.Context) ([]ServingStyle, error) {
	rows, err := q.db.Query(ctx, `SELECT name, multiplier FROM serving_styles ORDER BY multiplier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var styles []ServingStyle
	for rows.Next() {
		var s ServingStyle
		if err := rows.Scan(&s.Name, &s.Multiplier); err != nil {
			return nil, err
		}
		styles = append(styles, s)
	}
	return styles, rows.Err()
}
