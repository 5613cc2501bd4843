// Package embedded links every format handler into the binary. Import it
// for its side effects:
//
//	import _ "github.com/FocuswithJustin/JuniperScore/internal/embedded"
package embedded

import (
	// Format handlers register themselves from init.
	_ "github.com/FocuswithJustin/JuniperScore/internal/formats/darms"
	_ "github.com/FocuswithJustin/JuniperScore/internal/formats/json"
	_ "github.com/FocuswithJustin/JuniperScore/internal/formats/mei"
	_ "github.com/FocuswithJustin/JuniperScore/internal/formats/pae"
)
