package adminctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/server/auth"
	"github.com/pathwayfr/pathway/internal/server/models"
	"github.com/pathwayfr/pathway/internal/server/services"
)

// AdminCreator persists a verified administrator.
type AdminCreator interface {
	CreateAdmin(ctx context.Context, in services.AdminInput) (*models.User, error)
}

var ErrPasswordMismatch = errors.New("passwords do not match")

// CreateAdmin prompts for the administrator identity and a confirmed
// password, then creates the account. Plaintext passwords are wiped before
// returning.
func CreateAdmin(ctx context.Context, reader *bufio.Reader, w io.Writer, creator AdminCreator) (*models.User, error) {
	in := services.AdminInput{}
	var err error
	if in.FirstName, err = GetSimpleText(reader, "First name", w); err != nil {
		return nil, err
	}
	if in.LastName, err = GetSimpleText(reader, "Last name", w); err != nil {
		return nil, err
	}
	if in.Email, err = GetSimpleText(reader, "Email", w); err != nil {
		return nil, err
	}

	pw, err := GetPassword(w, "Password")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(pw)
	confirm, err := GetPassword(w, "Repeat password")
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return nil, ErrPasswordMismatch
	}
	if err := auth.CheckPasswordStrength(string(pw)); err != nil {
		return nil, err
	}
	in.Password = string(pw)

	u, err := creator.CreateAdmin(ctx, in)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "Administrator %s created (id %d)\n", u.Email, u.ID)
	return u, nil
}
