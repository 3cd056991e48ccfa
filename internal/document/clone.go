package document

import (
	"time"

	"adBuilder/internal/model"
)

func cloneAd(ad *model.Ad) *model.Ad {
	out := *ad
	out.RegionIDs = append([]string(nil), ad.RegionIDs...)
	out.ValidFrom = cloneTime(ad.ValidFrom)
	out.ValidTo = cloneTime(ad.ValidTo)
	if ad.Sections != nil {
		out.Sections = make([]model.Section, len(ad.Sections))
		for i, s := range ad.Sections {
			out.Sections[i] = cloneSection(s)
		}
	}
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneSection(s model.Section) model.Section {
	if s.Pages != nil {
		pages := make([]model.Page, len(s.Pages))
		for i, p := range s.Pages {
			pages[i] = clonePage(p)
		}
		s.Pages = pages
	}
	return s
}

func clonePage(p model.Page) model.Page {
	p.TemplateID = cloneString(p.TemplateID)
	if p.Blocks != nil {
		blocks := make([]model.PlacedBlock, len(p.Blocks))
		for i, b := range p.Blocks {
			b.ZoneID = cloneString(b.ZoneID)
			b.Overrides = b.Overrides.Clone()
			blocks[i] = b
		}
		p.Blocks = blocks
	}
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func findSection(ad *model.Ad, id string) *model.Section {
	for i := range ad.Sections {
		if ad.Sections[i].ID == id {
			return &ad.Sections[i]
		}
	}
	return nil
}

func findPage(ad *model.Ad, id string) *model.Page {
	for si := range ad.Sections {
		pages := ad.Sections[si].Pages
		for pi := range pages {
			if pages[pi].ID == id {
				return &pages[pi]
			}
		}
	}
	return nil
}

func locateBlock(ad *model.Ad, id string) (*model.Page, int, bool) {
	for si := range ad.Sections {
		pages := ad.Sections[si].Pages
		for pi := range pages {
			for bi, b := range pages[pi].Blocks {
				if b.ID == id {
					return &pages[pi], bi, true
				}
			}
		}
	}
	return nil, -1, false
}

func insertAt[T any](list []T, item T, index int) []T {
	if index < 0 || index >= len(list) {
		return append(list, item)
	}
	list = append(list, item)
	copy(list[index+1:], list[index:])
	list[index] = item
	return list
}

func removeAt[T any](list []T, index int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...)
}

func move[T any](list []T, from, to int) []T {
	if to < 0 {
		to = 0
	}
	if to >= len(list) {
		to = len(list) - 1
	}
	item := list[from]
	list = removeAt(list, from)
	return insertAt(list, item, to)
}

func renumberSections(sections []model.Section) {
	for i := range sections {
		sections[i].Position = i
	}
}

func renumberPages(pages []model.Page) {
	for i := range pages {
		pages[i].Position = i
	}
}
