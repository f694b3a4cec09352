package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"talok/internal/domain"
)

// UpsertProfile inserts the profile or updates the existing one for the same user.
func (s *Store) UpsertProfile(ctx context.Context, p domain.Profile) error {
	existing, err := s.GetProfileByUser(ctx, p.UserID)
	switch {
	case err == nil:
		_, err = s.exec(ctx, `
UPDATE profiles SET role = ?, first_name = ?, last_name = ?, email = ?, phone = ?, company = ?
WHERE id = ?`,
			string(p.Role), p.FirstName, p.LastName, p.Email, valStr(p.Phone), valStr(p.Company), existing.ID.String())
		return err
	case !errors.Is(err, domain.ErrNotFound):
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	cols := []column{
		{name: "id", value: p.ID.String(), required: true},
		{name: "user_id", value: p.UserID.String(), required: true},
		{name: "role", value: string(p.Role), required: true},
		{name: "first_name", value: p.FirstName},
		{name: "last_name", value: p.LastName},
		{name: "email", value: p.Email, required: true},
		{name: "phone", value: valStr(p.Phone)},
		{name: "company", value: valStr(p.Company)},
		{name: "created_at", value: p.CreatedAt.UTC(), required: true},
	}
	return s.insertWithFallback(ctx, s.db, "profiles", cols, nil)
}

func (s *Store) GetProfileByUser(ctx context.Context, userID uuid.UUID) (domain.Profile, error) {
	var (
		p              domain.Profile
		id, uid, role  string
		phone, company sql.NullString
	)
	err := s.queryRow(ctx, `
SELECT id, user_id, role, first_name, last_name, email, phone, company, created_at
FROM profiles WHERE user_id = ?`, userID.String()).
		Scan(&id, &uid, &role, &p.FirstName, &p.LastName, &p.Email, &phone, &company, &p.CreatedAt)
	if err != nil {
		return domain.Profile{}, notFound(err, "profile of user", userID)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return domain.Profile{}, fmt.Errorf("profile id: %w", err)
	}
	if p.UserID, err = uuid.Parse(uid); err != nil {
		return domain.Profile{}, fmt.Errorf("profile user_id: %w", err)
	}
	p.Role = domain.Role(role)
	p.Phone = nullStr(phone)
	p.Company = nullStr(company)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
