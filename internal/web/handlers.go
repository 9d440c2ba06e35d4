package web

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/inovacc/pagewright/internal/admin"
	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/model"
)

// genericError is what the panel shows when the store or an upstream call fails.
const genericError = "Something went wrong while saving. Try again."

// PageData holds common data for page templates
type PageData struct {
	Title      string
	ActivePage string
	Email      string
	LoadedAt   time.Time
	Sections   []string
	Collection []string
	Error      string
	Success    string
	Data       any
}

// FormView is an editable form with its current values.
type FormView struct {
	Form    model.Form
	Values  model.Record
	Action  string
	Missing map[string]bool
	// Preview is set for the hero section.
	Preview *admin.HeroPreview
}

// SectionSummary is one dashboard row.
type SectionSummary struct {
	Name      string
	Title     string
	UpdatedAt string
}

// CollectionSummary is one dashboard row.
type CollectionSummary struct {
	Name  string
	Title string
	Count int
}

// CollectionView is a collection page: its items plus the add form.
type CollectionView struct {
	Name  string
	Title string
	Items []model.Record
	// Label is the field shown in the item list.
	Label string
	Add   FormView
}

// ItemView is the edit page of one item.
type ItemView struct {
	Collection string
	ID         string
	Edit       FormView
}

func (s *Server) pageData(sess *admin.Session, title, active string) PageData {
	return PageData{
		Title:      title,
		ActivePage: active,
		Email:      sess.Email,
		LoadedAt:   sess.LoadedAt(),
		Sections:   content.SectionNames(),
		Collection: content.CollectionNames(),
	}
}

func newFormView(form model.Form, values model.Record, action string, err error) FormView {
	v := FormView{Form: form, Values: values, Action: action, Missing: map[string]bool{}}
	if v.Values == nil {
		v.Values = model.Record{}
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		for _, name := range verr.Missing {
			v.Missing[name] = true
		}
	}

	return v
}

// editableForm gives sections without declared fields one text input per
// stored key.
func editableForm(form model.Form, stored model.Record) model.Form {
	if len(form.Fields) > 0 {
		return form
	}

	var keys []string

	for k := range stored {
		switch k {
		case model.FieldID, model.FieldCreatedAt, model.FieldUpdatedAt, "items":
			continue
		}

		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		form.Fields = append(form.Fields, model.Field{Name: k, Label: k, Type: model.FieldText})
	}

	return form
}

// errorMessage turns an edit failure into the inline notification.
func (s *Server) errorMessage(err error) string {
	var verr *model.ValidationError

	switch {
	case errors.As(err, &verr):
		return "Fill in the required fields."
	case statusFor(err) == http.StatusNotFound:
		return "That item no longer exists."
	}

	s.logger.Error("admin action failed", "error", err)

	return genericError
}

// handleDashboard lists every section and collection.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	snap := sess.Snapshot()

	var (
		sections    []SectionSummary
		collections []CollectionSummary
	)

	for _, name := range content.SectionNames() {
		sections = append(sections, SectionSummary{
			Name:      name,
			Title:     model.SectionForm(name).Title,
			UpdatedAt: snap.Section(name).String(model.FieldUpdatedAt),
		})
	}

	for _, name := range content.CollectionNames() {
		title := name
		if kind, ok := model.KindOf(name); ok {
			if f, ok := model.KindForm(kind); ok {
				title = f.Title
			}
		}

		collections = append(collections, CollectionSummary{
			Name:  name,
			Title: title,
			Count: len(snap.Items(name)),
		})
	}

	data := s.pageData(sess, "Dashboard", "dashboard")
	data.Data = map[string]any{
		"Sections":    sections,
		"Collections": collections,
	}

	if r.URL.Query().Get("published") != "" {
		data.Success = "Site published."
	}

	s.render(w, http.StatusOK, "dashboard.html", data)
}

func (s *Server) sectionView(sess *admin.Session, name string, values model.Record, err error) (FormView, error) {
	form, ferr := s.ctrl.SectionForm(name)
	if ferr != nil {
		return FormView{}, ferr
	}

	stored := sess.Snapshot().Section(name)
	if values == nil {
		values = stored
	}

	v := newFormView(editableForm(form, stored), values, "/sections/"+name, err)

	if name == "hero" {
		p := admin.Preview(values)
		v.Preview = &p
	}

	return v, nil
}

func (s *Server) handleSectionPage(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name := r.PathValue("name")

	view, err := s.sectionView(sess, name, nil, nil)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	data := s.pageData(sess, view.Form.Title, name)
	data.Data = view

	if r.URL.Query().Get("saved") != "" {
		data.Success = "Saved."
	}

	s.render(w, http.StatusOK, "section.html", data)
}

func (s *Server) handleSaveSection(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name := r.PathValue("name")

	form, err := s.ctrl.SectionForm(name)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	values := admin.FromForm(editableForm(form, sess.Snapshot().Section(name)), r.PostForm)

	if _, err := s.ctrl.SaveSection(r.Context(), sess, name, values); err != nil {
		view, _ := s.sectionView(sess, name, values, err)

		data := s.pageData(sess, view.Form.Title, name)
		data.Data = view
		data.Error = s.errorMessage(err)

		s.render(w, statusFor(err), "section.html", data)

		return
	}

	http.Redirect(w, r, "/sections/"+name+"?saved=1", http.StatusSeeOther)
}

func (s *Server) collectionView(sess *admin.Session, name string, values model.Record, err error) (CollectionView, error) {
	form, ferr := s.ctrl.ItemForm(name)
	if ferr != nil {
		return CollectionView{}, ferr
	}

	label := model.FieldID

	for _, f := range form.Fields {
		if f.Type == model.FieldText && f.Required {
			label = f.Name

			break
		}
	}

	return CollectionView{
		Name:  name,
		Title: form.Title,
		Items: sess.Snapshot().Items(name),
		Label: label,
		Add:   newFormView(form, values, "/collections/"+name, err),
	}, nil
}

func (s *Server) handleCollectionPage(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name := r.PathValue("name")

	view, err := s.collectionView(sess, name, nil, nil)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	data := s.pageData(sess, view.Title, name)
	data.Data = view

	switch {
	case r.URL.Query().Get("added") != "":
		data.Success = "Item added."
	case r.URL.Query().Get("deleted") != "":
		data.Success = "Item deleted."
	}

	s.render(w, http.StatusOK, "collection.html", data)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name := r.PathValue("name")

	form, err := s.ctrl.ItemForm(name)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	values := admin.FromForm(form, r.PostForm)
	if r.PostForm.Get(model.FieldOrder) == "" {
		delete(values, model.FieldOrder)
	}

	if _, err := s.ctrl.AddItem(r.Context(), sess, name, values); err != nil {
		view, _ := s.collectionView(sess, name, values, err)

		data := s.pageData(sess, view.Title, name)
		data.Data = view
		data.Error = s.errorMessage(err)

		s.render(w, statusFor(err), "collection.html", data)

		return
	}

	http.Redirect(w, r, "/collections/"+name+"?added=1", http.StatusSeeOther)
}

func (s *Server) itemView(sess *admin.Session, name, id string, values model.Record, err error) (ItemView, error) {
	form, stored, ferr := s.ctrl.EditForm(sess, name, id)
	if ferr != nil {
		return ItemView{}, ferr
	}

	if values == nil {
		values = stored
	}

	return ItemView{
		Collection: name,
		ID:         id,
		Edit:       newFormView(form, values, "/collections/"+name+"/"+id, err),
	}, nil
}

func (s *Server) handleEditItemPage(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name, id := r.PathValue("name"), r.PathValue("id")

	view, err := s.itemView(sess, name, id, nil, nil)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	data := s.pageData(sess, "Edit "+view.Edit.Form.Title, name)
	data.Data = view

	if r.URL.Query().Get("saved") != "" {
		data.Success = "Saved."
	}

	s.render(w, http.StatusOK, "item.html", data)
}

func (s *Server) handleEditItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name, id := r.PathValue("name"), r.PathValue("id")

	form, err := s.ctrl.ItemForm(name)
	if err != nil {
		http.NotFound(w, r)

		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	values := admin.FromForm(form, r.PostForm)

	if _, err := s.ctrl.EditItem(r.Context(), sess, name, id, values); err != nil {
		view, verr := s.itemView(sess, name, id, values, err)
		if verr != nil {
			http.Redirect(w, r, "/collections/"+name, http.StatusSeeOther)

			return
		}

		data := s.pageData(sess, "Edit "+view.Edit.Form.Title, name)
		data.Data = view
		data.Error = s.errorMessage(err)

		s.render(w, statusFor(err), "item.html", data)

		return
	}

	http.Redirect(w, r, "/collections/"+name+"/"+id+"?saved=1", http.StatusSeeOther)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name, id := r.PathValue("name"), r.PathValue("id")

	if err := s.ctrl.DeleteItem(r.Context(), sess, name, id); err != nil {
		if statusFor(err) == http.StatusNotFound {
			http.NotFound(w, r)

			return
		}

		s.logger.Error("delete failed", "collection", name, "id", id, "error", err)
		http.Error(w, genericError, http.StatusBadGateway)

		return
	}

	http.Redirect(w, r, "/collections/"+name+"?deleted=1", http.StatusSeeOther)
}

// moveID returns ids with id shifted by delta positions, clamped to the ends.
func moveID(ids []string, id string, delta int) []string {
	i := slices.Index(ids, id)
	if i < 0 {
		return ids
	}

	j := min(max(i+delta, 0), len(ids)-1)
	if i == j {
		return ids
	}

	out := slices.Delete(slices.Clone(ids), i, i+1)

	return slices.Insert(out, j, id)
}

// handleMoveItem moves one item up or down the list.
func (s *Server) handleMoveItem(w http.ResponseWriter, r *http.Request, sess *admin.Session) {
	name := r.PathValue("name")

	if _, err := s.ctrl.ItemForm(name); err != nil {
		http.NotFound(w, r)

		return
	}

	delta := 1
	if r.PostFormValue("dir") == "up" {
		delta = -1
	}

	items := sess.Snapshot().Items(name)

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID())
	}

	if err := s.ctrl.ReorderItems(r.Context(), sess, name, moveID(ids, r.PostFormValue("id"), delta)); err != nil {
		s.logger.Error("reorder failed", "collection", name, "error", err)
		http.Error(w, genericError, statusFor(err))

		return
	}

	http.Redirect(w, r, "/collections/"+name, http.StatusSeeOther)
}

// handleHeroPreview renders the preview card for the hero form as typed.
func (s *Server) handleHeroPreview(w http.ResponseWriter, r *http.Request, _ *admin.Session) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)

		return
	}

	s.renderPartial(w, "hero_preview", admin.Preview(admin.FromForm(model.SectionForm("hero"), r.PostForm)))
}

// handleHealth returns health check status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"clients":  s.sseHub.ClientCount(),
	})
}
