package web

import (
	"errors"
	"net/http"

	"github.com/inovacc/pagewright/internal/admin"
)

const sessionCookie = "pagewright_session"

type sessionHandler func(http.ResponseWriter, *http.Request, *admin.Session)

// session resolves the cookie to an open session and re-verifies it.
// Sessions that fail verification are dropped.
func (s *Server) session(r *http.Request) (*admin.Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, admin.ErrSessionExpired
	}

	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		return nil, admin.ErrSessionExpired
	}

	if err := s.ctrl.Resume(r.Context(), sess); err != nil {
		s.sessions.Delete(sess.ID)

		return nil, err
	}

	return sess, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *admin.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// page guards an HTML route. Without a valid session the browser is sent
// to the login page; a revoked admin claim carries the denial message.
func (s *Server) page(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			s.clearSessionCookie(w)

			target := "/login"
			if errors.Is(err, admin.ErrAccessDenied) {
				target += "?denied=1"
			}

			http.Redirect(w, r, target, http.StatusSeeOther)

			return
		}

		next(w, r, sess)
	}
}

// api guards a JSON route.
func (s *Server) api(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r)
		if err != nil {
			s.clearSessionCookie(w)

			msg := "Sign in to continue."
			if errors.Is(err, admin.ErrAccessDenied) {
				msg = admin.AccessDeniedMessage
			}

			s.jsonError(w, msg, statusFor(err))

			return
		}

		next(w, r, sess)
	}
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)

		return
	}

	data := PageData{Title: "Sign in"}
	if r.URL.Query().Get("denied") != "" {
		data.Error = admin.AccessDeniedMessage
	}

	s.render(w, http.StatusOK, "login.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	data := PageData{Title: "Sign in", Data: map[string]string{"Email": email}}

	if email == "" || password == "" {
		data.Error = "Enter your email and password."
		s.render(w, http.StatusUnprocessableEntity, "login.html", data)

		return
	}

	sess, err := s.ctrl.Login(r.Context(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrAccessDenied):
			data.Error = admin.AccessDeniedMessage
		case statusFor(err) == http.StatusUnauthorized:
			data.Error = "Invalid email or password."
		default:
			s.logger.Error("login failed", "error", err)
			data.Error = "Sign in failed. Try again."
		}

		s.render(w, statusFor(err), "login.html", data)

		return
	}

	s.sessions.Put(sess)
	s.setSessionCookie(w, sess)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			if err := s.ctrl.Logout(r.Context(), sess); err != nil {
				s.logger.Warn("logout failed", "error", err)
			}

			s.sessions.Delete(sess.ID)
		}
	}

	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
