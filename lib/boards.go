package lib

import (
	"net/http"
	"strconv"

	"github.com/nozmo-king/chorum/internal"
	"github.com/nozmo-king/chorum/lib/board"
	"github.com/nozmo-king/chorum/lib/pow"
)

type threadView struct {
	board.Thread
	Achievement *pow.Achievement `json:"achievement,omitempty"`
}

type postView struct {
	board.Post
	Achievement *pow.Achievement `json:"achievement,omitempty"`
}

func achievement(digest string) *pow.Achievement {
	if a, ok := pow.AchievementOf(digest); ok {
		return &a
	}
	return nil
}

type boardResponse struct {
	Board   *board.Board `json:"board"`
	Threads []threadView `json:"threads"`
}

type threadResponse struct {
	Thread threadView `json:"thread"`
	Posts  []postView `json:"posts"`
}

func (s *Server) listBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := s.boards.ListBoards(r.Context())
	if err != nil {
		s.writeError(w, internal.GetRequestLogger(s.logger, r), err)
		return
	}

	if boards == nil {
		boards = []board.Board{}
	}

	writeJSON(w, http.StatusOK, boards)
}

func (s *Server) showBoard(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(s.logger, r)

	b, err := s.boards.BoardBySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		s.writeError(w, lg, err)
		return
	}

	threads, err := s.boards.ListThreads(r.Context(), b.ID, board.DefaultThreadLimit)
	if err != nil {
		s.writeError(w, lg, err)
		return
	}

	resp := boardResponse{
		Board:   b,
		Threads: make([]threadView, 0, len(threads)),
	}
	for _, t := range threads {
		resp.Threads = append(resp.Threads, threadView{Thread: t, Achievement: achievement(t.Hash)})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) showThread(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(s.logger, r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, lg, board.ErrThreadNotFound)
		return
	}

	t, err := s.boards.Thread(r.Context(), id)
	if err != nil {
		s.writeError(w, lg, err)
		return
	}

	posts, err := s.boards.ListPosts(r.Context(), id)
	if err != nil {
		s.writeError(w, lg, err)
		return
	}

	resp := threadResponse{
		Thread: threadView{Thread: *t, Achievement: achievement(t.Hash)},
		Posts:  make([]postView, 0, len(posts)),
	}
	for _, p := range posts {
		resp.Posts = append(resp.Posts, postView{Post: p, Achievement: achievement(p.Hash)})
	}

	writeJSON(w, http.StatusOK, resp)
}
