package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wolethescientist/audit-system-sub001/internal/actionlog"
	"github.com/wolethescientist/audit-system-sub001/internal/auth"
	"github.com/wolethescientist/audit-system-sub001/internal/directory"
)

type createUserRequest struct {
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

type createDepartmentRequest struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	if err := auth.Authorize(claims, auth.RoleSystemAdmin); err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden")
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.users.CreateUser(r.Context(), directory.CreateUserInput{
		Email:        req.Email,
		FullName:     req.FullName,
		Password:     req.Password,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = actionlog.Record(r.Context(), "directory.user.create", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		user, err := a.users.GetUser(r.Context(), userID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case len(parts) == 2 && parts[1] == "deactivate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		claims, _ := auth.ClaimsFromContext(r.Context())
		user, err := a.users.DeactivateUser(r.Context(), claims, userID)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = actionlog.Record(r.Context(), "directory.user.deactivate", map[string]any{
			"user_id": user.ID,
		})
		writeJSON(w, http.StatusOK, user)
	case len(parts) == 2 && parts[1] == "role":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req setRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		claims, _ := auth.ClaimsFromContext(r.Context())
		user, err := a.users.SetUserRole(r.Context(), claims, userID, req.Role)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = actionlog.Record(r.Context(), "directory.user.set_role", map[string]any{
			"user_id": user.ID,
			"role":    string(user.Role),
		})
		writeJSON(w, http.StatusOK, user)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		depts, err := a.users.ListDepartments(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"departments": depts})
	case http.MethodPost:
		var req createDepartmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		claims, _ := auth.ClaimsFromContext(r.Context())
		dept, err := a.users.CreateDepartment(r.Context(), claims, req.Name, req.Metadata)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		_ = actionlog.Record(r.Context(), "directory.department.create", map[string]any{
			"department_id": dept.ID,
			"name":          dept.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/departments/%s", dept.ID))
		writeJSON(w, http.StatusCreated, dept)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrDuplicateEmail):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "directory operation failed")
	}
}
