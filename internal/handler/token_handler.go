/*
Package handler provides the HTTP handlers and routing setup for the relay server.

This file contains the token mint endpoint backing the identity verification
seam. The mint itself is unauthenticated: anyone may request a token for any
identity. The value is the seam, not the security; a real deployment would put
an authentication step in front of this handler.
*/
package handler

import (
	"encoding/json"
	"net/http"

	"dmrelay/internal/configs"
	"dmrelay/internal/identity"
	"dmrelay/internal/pkg/errs"
	"dmrelay/internal/pkg/logx"
	"dmrelay/internal/pkg/resp"
)

// HandleMintToken issues a signed identity token for the posted identity.
// When the server runs in open identity mode there is no secret to sign with,
// and the endpoint reports invalid parameters.
func HandleMintToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Config.IdentityMode != configs.IdentityModeToken {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var claimed identity.Identity
		if err := json.NewDecoder(r.Body).Decode(&claimed); err != nil || claimed.ID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		token, err := identity.GenerateToken(claimed, deps.Config.TokenSecret)
		if err != nil {
			logx.Error(err, "Failed to generate identity token", "identity_id", claimed.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, map[string]string{
			"token": token,
		})
	}
}
