package quest

import (
	"html/template"
	"io"

	"github.com/starford/questcard/internal/node"
)

var (
	cardTemplate = template.Must(template.New("card").Parse(`<div class="{{.Class}}"{{if .Align}} style="text-align: {{.Align}}"{{end}} data-lexical-node-key="{{.Key}}" data-quest-state="{{.State}}">
{{- if .CardPending}}<span class="VantientQuest__placeholder">Quest loading...</span>
{{- else}}<article class="VantientQuest__card">
{{- if .ImagePending}}<span class="VantientQuest__placeholder">Image loading...</span>
{{- else if .CoverImageURL}}<figure class="VantientQuest__coverImage"><img src="{{.CoverImageURL}}" alt=""></figure>
{{- end}}<div class="VantientQuest__icon" aria-hidden="true"></div><div class="VantientQuest__detail"><h4>{{.Title}}</h4><p>{{.Description}}</p></div><div class="VantientQuest__cta"><button class="VantientQuest__button"><span>Join Quest</span></button></div>
{{- if .Period}}<footer class="VantientQuest__period"><span>{{.Period}}</span></footer>{{end -}}
</article>{{end -}}
</div>
`))
)

type cardData struct {
	Class         string
	Align         node.Format
	Key           string
	State         string
	CardPending   bool
	ImagePending  bool
	CoverImageURL string
	Title         string
	Description   string
	Period        string
}

// Render writes the card markup for the view's current state.
//
// While the first fetch is in flight the whole card is a placeholder. When
// the id changes after a payload committed, the previous detail stays on
// screen and only the image region shows a placeholder until the new
// payload commits.
func (v *View) Render(w io.Writer) error {
	return RenderSnapshot(w, v.Snapshot())
}

// RenderSnapshot writes the card markup for s. Title and description are
// text and are escaped, never interpreted as markup.
func RenderSnapshot(w io.Writer, s Snapshot) error {
	loading := s.State == StateLoading
	d := cardData{
		Class:         s.Props.ClassName.Base,
		Align:         s.Props.Format,
		Key:           s.Props.NodeKey,
		State:         s.State.String(),
		CardPending:   loading && !s.HasData,
		ImagePending:  loading && s.HasData,
		CoverImageURL: s.Detail.CoverImageURL,
		Title:         s.Detail.Title,
		Description:   s.Detail.Description,
		Period:        s.Detail.Period,
	}
	return cardTemplate.Execute(w, d)
}
