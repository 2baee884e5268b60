package types

// Client -> Server (websocket)
// move:
//   cell: number (0-8)
//
// ping: {}   // liveness probe; server answers pong

// Server -> Client (websocket)
// connected:
//   game: Game   // snapshot pushed immediately on connect
//
// game_update:
//   game: Game   // one per committed move, in commit order
//
// player_joined:
//   game: Game
//
// player_disconnected:
//   player_id: string   // informational; game stays resumable
//
// rematch_created:
//   new_game_id: string
//   game: Game
//
// pong: {}
//
// error:
//   error: string    // machine-readable kind
//   message: string  // sent only to the originating connection

// Game (HTTP and websocket payloads)
//   id, code, mode ("local"|"online"), status ("waiting"|"in_progress"|"completed"),
//   player_x_id, player_x_username, player_o_id, player_o_username,
//   board: Mark[9], current_turn, winner, winning_line: number[3],
//   is_draw, moves: {player_id, mark, cell, played_at}[],
//   rematch_id, version, created_at, completed_at
