package handler

import "net/http"

// handleMembers handles GET /members.
func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	self := h.node.ThisAddress()
	resp := MembersResponse{
		Self:         self.String(),
		Members:      []MemberInfo{},
		PendingTasks: h.node.PendingTasks(),
	}
	for _, m := range h.node.Members() {
		resp.Members = append(resp.Members, MemberInfo{
			Address:  m.Address.String(),
			State:    m.State().String(),
			Self:     m.Address.Equal(self),
			Joined:   m.Joined,
			LastSeen: m.LastSeen(),
		})
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}
