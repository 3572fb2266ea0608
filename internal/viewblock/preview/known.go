package preview

// KnownView is a published view the editor can select.
type KnownView struct {
	ID    string `json:"ID"`
	Name  string `json:"post_name"`
	Title string `json:"post_title"`
}

// KnownViews groups the published views by what they list.
type KnownViews struct {
	Posts    []KnownView `json:"posts"`
	Taxonomy []KnownView `json:"taxonomy"`
	Users    []KnownView `json:"users"`
}

// Loaded reports whether any category list was provided. An unloaded registry
// never marks a view as deleted.
func (k KnownViews) Loaded() bool {
	return k.Posts != nil || k.Taxonomy != nil || k.Users != nil
}

// Contains reports whether ref, a view ID or slug, is published in any of the
// three categories.
func (k KnownViews) Contains(ref string) bool {
	if ref == "" {
		return false
	}
	for _, list := range [][]KnownView{k.Posts, k.Taxonomy, k.Users} {
		for _, v := range list {
			if v.ID == ref || v.Name == ref {
				return true
			}
		}
	}
	return false
}

// Len is the total number of published views.
func (k KnownViews) Len() int {
	return len(k.Posts) + len(k.Taxonomy) + len(k.Users)
}
