package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/service"
)

// UserHandler serves account administration and the like/favorite lists.
type UserHandler struct {
	users     *service.UserService
	reactions *service.ReactionService
	logger    *slog.Logger
}

func NewUserHandler(users *service.UserService, reactions *service.ReactionService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, reactions: reactions, logger: logger}
}

// HandleList returns every account. HTTP: GET /user/all (admin).
// model.User keeps the password hash out of the JSON.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleAdd creates an account, optionally an admin. HTTP: POST /user/add.
func (h *UserHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string   `json:"username"`
		Email    string   `json:"email"`
		Password string   `json:"password"`
		IsAdmin  flexBool `json:"is_admin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	u, err := h.users.Add(r.Context(), req.Username, req.Email, req.Password, bool(req.IsAdmin))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user_id": u.ID})
}

// HandleUpdate changes the caller's own account.
// HTTP: PUT /user/update/{user_id} with {password, new_password?, email?, username?}.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	targetID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req struct {
		Password    string  `json:"password"`
		NewPassword *string `json:"new_password"`
		Email       *string `json:"email"`
		Username    *string `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	err = h.users.Update(r.Context(), caller, targetID, service.UpdateUserInput{
		Password:    req.Password,
		NewPassword: req.NewPassword,
		Email:       req.Email,
		Username:    req.Username,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "User updated successfully"})
}

// HandleDelete removes an account.
//
// HTTP: DELETE /user/delete/{user_id_delete}
//
//	or  DELETE /user/delete  with {user_id_delete} | {email} | {username}
//
// The body always carries the acting admin's password.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	var req struct {
		Password     string  `json:"password"`
		UserIDDelete flexInt `json:"user_id_delete"`
		Email        string  `json:"email"`
		Username     string  `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	target := service.DeleteTarget{ID: int64(req.UserIDDelete), Email: req.Email, Username: req.Username}
	if chi.URLParam(r, "user_id_delete") != "" {
		id, err := pathID(r, "user_id_delete")
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		target.ID = id
	}

	deleted, err := h.users.Delete(r.Context(), caller, req.Password, target)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": deleted.ID})
}

// reaction builds the four like/favorite handlers, which differ only in
// kind and direction.
func (h *UserHandler) reaction(kind model.ReactionKind, add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity(w, r, h.logger)
		if !ok {
			return
		}
		var req struct {
			BookID flexInt `json:"book_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}

		var err error
		if add {
			err = h.reactions.Add(r.Context(), kind, caller.UserID, int64(req.BookID))
		} else {
			err = h.reactions.Remove(r.Context(), kind, caller.UserID, int64(req.BookID))
		}
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func (h *UserHandler) HandleLike() http.HandlerFunc       { return h.reaction(model.Like, true) }
func (h *UserHandler) HandleUnlike() http.HandlerFunc     { return h.reaction(model.Like, false) }
func (h *UserHandler) HandleFavorite() http.HandlerFunc   { return h.reaction(model.Favorite, true) }
func (h *UserHandler) HandleUnfavorite() http.HandlerFunc { return h.reaction(model.Favorite, false) }

// HandleFavorites lists a user's favorite books. HTTP: GET /user/{user_id}/favorites.
func (h *UserHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	books, err := h.reactions.Favorites(r.Context(), caller, userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}
