package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
)

var getProperties = GetProperties

// ResetPassword requests a reset code for an address, then asks for the
// code and the new password.
func (a *App) ResetPassword(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}

	rctx, cancel := a.withTimeout(ctx)
	err = a.api.RequestPasswordResetCode(rctx, email)
	cancel()
	if err != nil {
		return a.report("Reset code request", err)
	}

	code, err := getSimpleText(a.reader, "Enter the code from the email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	cctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.api.ChangePassword(cctx, email, code, string(password)); err != nil {
		return a.report("Password change", err)
	}
	a.println("Password changed")
	return nil
}

// ConfirmEmail mails a confirmation code to the signed-in account and asks
// for it back.
func (a *App) ConfirmEmail(ctx context.Context) error {
	rctx, cancel := a.withTimeout(ctx)
	err := a.api.RequestEmailConfirmationCode(rctx)
	cancel()
	if err != nil {
		return a.report("Confirmation code request", err)
	}
	if a.account != nil && a.account.IsEmailConfirmed {
		a.println("Email already confirmed")
		return nil
	}

	code, err := getSimpleText(a.reader, "Enter the code from the email", a.out)
	if err != nil {
		return err
	}

	cctx, cancel := a.withTimeout(ctx)
	defer cancel()
	if err := a.api.ConfirmEmail(cctx, code); err != nil {
		return a.report("Email confirmation", err)
	}
	if a.account != nil {
		a.account.IsEmailConfirmed = true
	}
	a.println("Email confirmed")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.AccountInfo(ctx)
	if err != nil {
		return a.report("Account lookup", err)
	}
	a.account = info
	a.printAccount(info)
	return nil
}

// WhoIs shows another account. The username comes from args or a prompt.
func (a *App) WhoIs(ctx context.Context, args []string) error {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		var err error
		if username, err = getSimpleText(a.reader, "Enter username", a.out); err != nil {
			return err
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.AccountInfoByUsername(ctx, username)
	if err != nil {
		return a.report("Account lookup", err)
	}
	a.printAccount(info)
	return nil
}

// SetProperties reads name=value lines and binds them to the account.
func (a *App) SetProperties(ctx context.Context) error {
	lines, err := getProperties(a.reader, a.out)
	if err != nil {
		return err
	}
	props, err := ParseProperties(lines)
	if err != nil {
		a.println(err.Error())
		return err
	}
	if len(props) == 0 {
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	info, err := a.api.BindExtraProperties(ctx, props)
	if err != nil {
		return a.report("Saving properties", err)
	}
	a.account = info
	a.printAccount(info)
	return nil
}

func (a *App) printAccount(info *packet.AccountInfo) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (id %s)", info.Username, info.ID)
	if info.IsGuest {
		b.WriteString(" guest")
	}
	if info.Email != "" {
		fmt.Fprintf(&b, "\n  email: %s", info.Email)
		if !info.IsEmailConfirmed {
			b.WriteString(" (unconfirmed)")
		}
	}

	keys := make([]string, 0, len(info.Properties))
	for k := range info.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s=%s", k, info.Properties[k])
	}

	a.println(b.String())
}
